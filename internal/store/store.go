package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/macabanto/wordnet/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrDuplicate reports that the store rejected an insert as a duplicate key.
// With store-generated IDs this is not expected, but it is tolerated: callers
// log it and move on instead of retrying.
var ErrDuplicate = errors.New("duplicate entry")

// EntryStore is the persistence surface the crawl worker depends on.
type EntryStore interface {
	// Insert persists one entry. A duplicate-key rejection is returned as
	// ErrDuplicate; any other error means this entry was not stored.
	Insert(ctx context.Context, entry *model.Entry) error

	// Exists reports whether at least one stored entry has the given term.
	// It is an advisory check only; false negatives under concurrent writes
	// are acceptable.
	Exists(ctx context.Context, term string) (bool, error)
}

// Store persists entries through GORM.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to MySQL with the given DSN and migrates the entries table.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewWithDB(db, logger)
}

// NewWithDB wraps an existing GORM handle. 测试里用它挂 sqlite 内存库。
func NewWithDB(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm db is nil")
	}
	if err := db.AutoMigrate(&model.Entry{}); err != nil {
		return nil, fmt.Errorf("migrate entries: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Insert stores one entry. The store generates the ID; term uniqueness is
// deliberately NOT enforced, so inserting the same entry twice produces two
// rows.
func (s *Store) Insert(ctx context.Context, entry *model.Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	err := s.db.WithContext(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicate, entry.Term)
	}
	if err != nil {
		return fmt.Errorf("insert entry %q: %w", entry.Term, err)
	}
	return nil
}

// Exists reports whether the (normalized) term already has a stored entry.
func (s *Store) Exists(ctx context.Context, term string) (bool, error) {
	clean := strings.ToLower(strings.TrimSpace(term))
	err := s.db.WithContext(ctx).
		Select("id").
		Where("term = ?", clean).
		Take(&model.Entry{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", clean, err)
	}
	return true, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

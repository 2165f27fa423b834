package model

import (
	"time"
)

// Entry 表示某个词条的一个义项（词性 + 释义 + 同义词列表）。
//
// 同一个 term 可能有多条 Entry（不同词性/义项），term 上只有普通索引，
// 不做唯一约束：重复抓取产生的重复行是允许的，去重只在入队前做 best-effort
// 过滤（见 internal/crawler 的 expander）。
type Entry struct {
	ID        uint      `gorm:"primaryKey"` // 存储层生成的唯一标识
	CreatedAt time.Time // 首次入库时间

	Term         string   `gorm:"type:varchar(191);index;not null"` // 规范化后的词条（小写、空格分隔）
	PartOfSpeech string   `gorm:"type:varchar(64)"`                 // 词性，解析不到时为 "unknown"
	Definition   string   `gorm:"type:text"`                        // 释义，解析不到时为 "no definition"
	Synonyms     []string `gorm:"serializer:json"`                  // 同义词（保持页面顺序）
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App   AppConfig   `json:"app"`
	MySQL MySQLConfig `json:"mysql"`
	Redis RedisConfig `json:"redis"`
	Crawl CrawlConfig `json:"crawl"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env         string `json:"env"`          // 运行环境: local / prod
	LogLevel    string `json:"log_level"`    // 日志级别: debug / info / warn / error
	WorkerID    int    `json:"worker_id"`    // worker 标识，出现在每条日志里
	WorkerCount int    `json:"worker_count"` // 单进程内并行的 worker 循环数
	MetricsAddr string `json:"metrics_addr"` // Prometheus 指标服务监听地址
}

// MySQLConfig 词条存储配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig 队列存储配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// CrawlConfig 抓取策略配置。
type CrawlConfig struct {
	BaseURL               string        `json:"base_url"`                // 词条页面基础 URL
	FetchTimeout          time.Duration `json:"fetch_timeout"`           // 单次 HTTP 请求超时
	MaxAttempts           int           `json:"max_attempts"`            // 每个词条每轮的尝试预算
	ProxyFailureThreshold int           `json:"proxy_failure_threshold"` // 连续失败多少次后隔离代理
	SkipProbability       float64       `json:"skip_probability"`        // 随机跳过词条的概率
	GiveUpProbability     float64       `json:"give_up_probability"`     // 抓取失败后放弃（不重新入队）的概率
	RateLimit             float64       `json:"rate_limit"`              // 全局限流速率 (req/s)，0 表示关闭
	RateBurst             float64       `json:"rate_burst"`              // 全局限流桶容量
	Seed                  int64         `json:"seed"`                    // 随机策略种子，0 表示按时间取
}

// Load 从 JSON 文件加载配置，环境变量优先覆盖。
//
// 配置文件不存在时直接使用默认值，这不是错误；连不上队列或存储才是
// 启动失败（由调用方处理）。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	cfg := getDefaultConfig()
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		applyDefaults(cfg)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "local",
			LogLevel:    "info",
			WorkerID:    0,
			WorkerCount: 1,
			MetricsAddr: ":2112",
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/wordnet?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Crawl: CrawlConfig{
			BaseURL:               "https://www.collinsdictionary.com/dictionary/english-thesaurus/",
			FetchTimeout:          20 * time.Second,
			MaxAttempts:           3,
			ProxyFailureThreshold: 3,
			SkipProbability:       0.03,
			GiveUpProbability:     0.7,
			RateLimit:             0,
			RateBurst:             0,
			Seed:                  0,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.WorkerCount == 0 {
		cfg.App.WorkerCount = defaults.App.WorkerCount
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Crawl.BaseURL == "" {
		cfg.Crawl.BaseURL = defaults.Crawl.BaseURL
	}
	if cfg.Crawl.FetchTimeout == 0 {
		cfg.Crawl.FetchTimeout = defaults.Crawl.FetchTimeout
	}
	if cfg.Crawl.MaxAttempts == 0 {
		cfg.Crawl.MaxAttempts = defaults.Crawl.MaxAttempts
	}
	if cfg.Crawl.ProxyFailureThreshold == 0 {
		cfg.Crawl.ProxyFailureThreshold = defaults.Crawl.ProxyFailureThreshold
	}
	if cfg.Crawl.SkipProbability == 0 {
		cfg.Crawl.SkipProbability = defaults.Crawl.SkipProbability
	}
	if cfg.Crawl.GiveUpProbability == 0 {
		cfg.Crawl.GiveUpProbability = defaults.Crawl.GiveUpProbability
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("db_dsn", "DB_DSN")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("WORKER_ID"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerID = i
		}
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.App.WorkerCount = i
		}
	}
	if v := os.Getenv("WORKER_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}

	// 队列地址：REDIS_ADDR 整体覆盖，或 REDIS_HOST / REDIS_PORT 分开给。
	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	} else if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.Redis.Addr = host + ":" + port
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := viper.GetString("db_dsn"); v != "" {
		cfg.MySQL.DSN = v
	}

	if v := os.Getenv("CRAWL_BASE_URL"); v != "" {
		cfg.Crawl.BaseURL = v
	}
	if v := os.Getenv("CRAWL_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Crawl.FetchTimeout = d
		}
	}
	if v := os.Getenv("CRAWL_MAX_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Crawl.MaxAttempts = i
		}
	}
	if v := os.Getenv("CRAWL_PROXY_FAILURE_THRESHOLD"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Crawl.ProxyFailureThreshold = i
		}
	}
	if v := os.Getenv("CRAWL_SKIP_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Crawl.SkipProbability = f
		}
	}
	if v := os.Getenv("CRAWL_GIVE_UP_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Crawl.GiveUpProbability = f
		}
	}
	if v := os.Getenv("CRAWL_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Crawl.RateLimit = f
		}
	}
	if v := os.Getenv("CRAWL_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Crawl.RateBurst = f
		}
	}
	if v := os.Getenv("CRAWL_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Crawl.Seed = i
		}
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串（如 "20s"）。
func (c *CrawlConfig) UnmarshalJSON(data []byte) error {
	type Alias CrawlConfig
	aux := &struct {
		FetchTimeout string `json:"fetch_timeout"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.FetchTimeout != "" {
		d, err := time.ParseDuration(aux.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout format: %w", err)
		}
		c.FetchTimeout = d
	}
	return nil
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 定时采集的 cron 表达式与两次自动运行之间的最小间隔
	CronSpec    string
	MinInterval time.Duration

	// 分类顺序固定，保证每轮任务按相同顺序处理
	Categories []string

	// 相邻分类之间的固定停顿，避免出站请求瞬时堆积
	CategoryDelay time.Duration

	// 单个数据源单次抓取的条数上限
	PerSourceLimit int

	// 管理接口的 Basic Auth（两者都配置时才启用）
	BasicAuthUser string
	BasicAuthPass string

	// browser-scraper 边车服务地址，为空则禁用浏览器兜底抓取
	BrowserScraperURL string
}

func Load() *Config {
	// .env 仅作本地开发便利，不存在时静默忽略
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:           getEnv("APP_PORT", "9000"),
		PostgresDSN:       getEnv("POSTGRES_DSN", "host=localhost user=inspirehub password=inspirehub dbname=inspirehub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:          getEnv("CRON_SPEC", "*/30 * * * *"),
		MinInterval:       getEnvDuration("MIN_INTERVAL", 10*time.Minute),
		Categories:        getEnvList("CATEGORIES", []string{"hackathon", "design-contest", "inspiration"}),
		CategoryDelay:     getEnvDuration("CATEGORY_DELAY", 2*time.Second),
		PerSourceLimit:    getEnvInt("PER_SOURCE_LIMIT", 50),
		BasicAuthUser:     getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:     getEnv("APP_BASIC_PASS", ""),
		BrowserScraperURL: getEnv("BROWSER_SCRAPER_URL", ""),
	}

	log.Printf("config loaded: port=%s cron=%s minInterval=%s categories=%v",
		cfg.AppPort, cfg.CronSpec, cfg.MinInterval, cfg.Categories)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("warn: invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("warn: invalid %s=%q, using default %s", key, v, def)
	}
	return def
}

// getEnvList 解析逗号分隔列表，空白项会被丢弃
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}

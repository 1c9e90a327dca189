package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	JWTExpiry   time.Duration
	Port        string

	// TMDB 客户端配置
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBLanguage     string
	TMDBIncludeAdult bool
	TMDBTimeout      time.Duration

	// 同步服务配置
	SyncPacing      time.Duration
	SyncMaxAttempts int
}

// Load 加载配置
func Load() *Config {
	expiryHours, _ := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "72"))

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "cinesync")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	timeoutSec, _ := strconv.Atoi(getEnv("TMDB_TIMEOUT_SECONDS", "30"))
	pacingMs, _ := strconv.Atoi(getEnv("SYNC_PACING_MS", "500"))
	maxAttempts, _ := strconv.Atoi(getEnv("SYNC_MAX_RETRIES", "3"))

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		AppSecret:   appSecret,
		DatabaseURL: dbURL,
		JWTExpiry:   time.Duration(expiryHours) * time.Hour,
		Port:        getEnv("PORT", "5005"),

		TMDBAPIKey:       getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/"),
		TMDBLanguage:     getEnv("TMDB_LANGUAGE", "vi-VN"),
		TMDBIncludeAdult: getEnv("TMDB_INCLUDE_ADULT", "false") == "true",
		TMDBTimeout:      time.Duration(timeoutSec) * time.Second,

		SyncPacing:      time.Duration(pacingMs) * time.Millisecond,
		SyncMaxAttempts: maxAttempts,
	}
}

// Validate 校验启动必需的配置项
// 缺少凭证属于配置错误，重试无法修复，必须在启动时失败
func (c *Config) Validate() error {
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("未设置 TMDB_API_KEY")
	}
	if c.SyncMaxAttempts < 1 {
		return fmt.Errorf("SYNC_MAX_RETRIES 必须大于等于 1，当前为 %d", c.SyncMaxAttempts)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

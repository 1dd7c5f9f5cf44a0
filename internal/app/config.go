package app

import (
	"time"

	"github.com/lumachat/luma-backend/internal/platform/logger"
	"github.com/lumachat/luma-backend/internal/utils"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins string

	CacheKeyPrefix string
	CacheTTL       time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	addr := utils.GetEnv("HTTP_ADDR", ":8080", log)
	origins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)
	prefix := utils.GetEnv("CACHE_KEY_PREFIX", "", log)
	ttlSeconds := utils.GetEnvAsInt("CACHE_TTL_SECONDS", 0, log)
	return Config{
		HTTPAddr:       addr,
		AllowedOrigins: origins,
		CacheKeyPrefix: prefix,
		CacheTTL:       time.Duration(ttlSeconds) * time.Second,
	}
}

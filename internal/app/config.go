package app

import (
	"strings"

	"github.com/yungbote/docchat-backend/internal/platform/envutil"
)

type Config struct {
	Addr           string
	Environment    string
	Version        string
	VectorProvider string
	RedisAddr      string
}

func LoadConfig() Config {
	return Config{
		Addr:           envutil.Str("HTTP_ADDR", ":8080"),
		Environment:    envutil.Str("APP_ENV", "development"),
		Version:        envutil.Str("APP_VERSION", "dev"),
		VectorProvider: strings.ToLower(strings.TrimSpace(envutil.Str("VECTOR_PROVIDER", "pinecone"))),
		RedisAddr:      strings.TrimSpace(envutil.Str("REDIS_ADDR", "")),
	}
}

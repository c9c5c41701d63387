package global

import (
	"os"
	"strconv"
	"time"

	mongoutil "RProject/data/database/mgo/mongoutil"
	"RProject/service/natsx"
	redisstore "RProject/service/storage/redis"
)

// AppConfig is the process configuration, populated from the environment
// with sane local-dev defaults. Redis and NATS are optional: an empty addr
// leaves that integration off.
type AppConfig struct {
	HTTPAddr  string
	NodeID    int64
	JWTSecret string

	Mongo mongoutil.Config
	Redis redisstore.Config
	Nats  natsx.Config

	PresenceSweepInterval time.Duration
	PresenceTTL           time.Duration
	HistoryWindow         int64
}

func Load() *AppConfig {
	return &AppConfig{
		HTTPAddr:  envStr("IM_HTTP_ADDR", ":8080"),
		NodeID:    envInt("IM_NODE_ID", 1),
		JWTSecret: envStr("IM_JWT_SECRET", "dev-secret-change-me"),
		Mongo: mongoutil.Config{
			Uri:         envStr("IM_MONGO_URI", ""),
			Address:     []string{envStr("IM_MONGO_ADDR", "127.0.0.1:27017")},
			Database:    envStr("IM_MONGO_DB", "im"),
			Username:    envStr("IM_MONGO_USER", ""),
			Password:    envStr("IM_MONGO_PASS", ""),
			AuthSource:  envStr("IM_MONGO_AUTH_SOURCE", "admin"),
			MaxPoolSize: int(envInt("IM_MONGO_POOL", 100)),
			MaxRetry:    int(envInt("IM_MONGO_RETRY", 3)),
		},
		Redis: redisstore.Config{
			Addr:     envStr("IM_REDIS_ADDR", ""),
			Password: envStr("IM_REDIS_PASS", ""),
			DB:       int(envInt("IM_REDIS_DB", 0)),
		},
		Nats: natsx.Config{
			URL:  envStr("IM_NATS_URL", ""),
			Name: envStr("IM_NATS_NAME", "im-gateway"),
		},
		PresenceSweepInterval: envDur("IM_PRESENCE_SWEEP", 10*time.Second),
		PresenceTTL:           envDur("IM_PRESENCE_TTL", 30*time.Second),
		HistoryWindow:         envInt("IM_HISTORY_WINDOW", 200),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

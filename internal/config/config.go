package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	LocalDBPath           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	OutletID              string
	OperatorUserID        int64
	AuthSecret            string
	SeedAdminPassword     string
	SeedKasirPassword     string
	AccessTokenTTLMinutes int
	ProbeIntervalSeconds  int
	SyncIntervalSeconds   int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	probe, err := strconv.Atoi(getEnv("PROBE_INTERVAL_SECONDS", "10"))
	if err != nil || probe < 1 {
		probe = 10
	}
	// 0 disables the periodic drain; connectivity and manual triggers remain.
	syncInterval, err := strconv.Atoi(getEnv("SYNC_INTERVAL_SECONDS", "0"))
	if err != nil || syncInterval < 0 {
		syncInterval = 0
	}
	operatorID, err := strconv.ParseInt(getEnv("OPERATOR_USER_ID", "1"), 10, 64)
	if err != nil || operatorID < 1 {
		operatorID = 1
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		LocalDBPath:           getEnv("LOCAL_DB_PATH", "laundriku-agent.db"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		OutletID:              getEnv("OUTLET_ID", "outlet-utama"),
		OperatorUserID:        operatorID,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SeedAdminPassword:     strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),
		SeedKasirPassword:     strings.TrimSpace(os.Getenv("SEED_KASIR_PASSWORD")),
		AccessTokenTTLMinutes: tokenTTL,
		ProbeIntervalSeconds:  probe,
		SyncIntervalSeconds:   syncInterval,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

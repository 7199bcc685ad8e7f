package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/doorman.db"

	// Guarded resource
	GuardedChannelID string
	NotifyChannelID  string

	// Timing
	RequestTTL    time.Duration // pending knock lifetime (1-60 min)
	GrantTTL      time.Duration // issued-capability lifetime
	ExitGrace     time.Duration // post-exit revoke delay
	SweepInterval time.Duration
}

func FromEnv() Config {
	addr := getenvDefault("DOORMAN_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("DOORMAN_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("DOORMAN_DB_PATH", "./data/doorman.db")

	requestTTLMin := getenvInt("DOORMAN_REQUEST_TTL_MINUTES", 5)
	if requestTTLMin < 1 {
		requestTTLMin = 1
	}
	if requestTTLMin > 60 {
		requestTTLMin = 60
	}

	grantTTLMs := getenvInt("DOORMAN_GRANT_TTL_MS", 300000)
	exitGraceMs := getenvInt("DOORMAN_EXIT_GRACE_MS", 1800000)
	sweepMin := getenvInt("DOORMAN_SWEEP_INTERVAL_MINUTES", 1)
	if sweepMin < 1 {
		sweepMin = 1
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		GuardedChannelID: os.Getenv("DOORMAN_GUARDED_CHANNEL_ID"),
		NotifyChannelID:  os.Getenv("DOORMAN_NOTIFY_CHANNEL_ID"),

		RequestTTL:    time.Duration(requestTTLMin) * time.Minute,
		GrantTTL:      time.Duration(grantTTLMs) * time.Millisecond,
		ExitGrace:     time.Duration(exitGraceMs) * time.Millisecond,
		SweepInterval: time.Duration(sweepMin) * time.Minute,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

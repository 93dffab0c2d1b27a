package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g., ":8080"
	LogDir      string // logs directory
	DatabaseURL string // postgres://...; empty means SQLite or in-memory
	SQLitePath  string // SQLite file path; empty with no DATABASE_URL means in-memory store

	CheckInterval        time.Duration // global cycle cadence; 0 disables the scheduler
	MaxConcurrentChecks  int           // probe fan-out bound per cycle
	DefaultTimeout       time.Duration // probe timeout for services that configure none
	FailuresForIncident  int           // consecutive failures before an incident opens
	SuccessesForRecovery int           // consecutive successes before it resolves

	SlackWebhook string // incoming-webhook URL; empty disables Slack notifications

	TriggerRPM   int // manual-trigger rate limit (requests per minute per IP)
	TriggerBurst int
}

func FromEnv() Config {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	return Config{
		Addr:        addr,
		LogDir:      logDir,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),

		CheckInterval:        time.Duration(envInt("CHECK_INTERVAL_SEC", 60)) * time.Second,
		MaxConcurrentChecks:  envInt("MAX_CONCURRENT_CHECKS", 8),
		DefaultTimeout:       time.Duration(envInt("DEFAULT_TIMEOUT_MS", 5000)) * time.Millisecond,
		FailuresForIncident:  envInt("FAILURES_FOR_INCIDENT", 2),
		SuccessesForRecovery: envInt("SUCCESSES_FOR_RECOVERY", 2),

		SlackWebhook: os.Getenv("SLACK_WEBHOOK"),

		TriggerRPM:   envInt("TRIGGER_RPM", 30),
		TriggerBurst: envInt("TRIGGER_BURST", 10),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

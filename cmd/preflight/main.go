// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK"))

	if apiAddr == "" {
		warn("ADDR is empty; the API will default to :8080.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	switch {
	case db != "":
		if !strings.HasPrefix(db, "postgres://") && !strings.HasPrefix(db, "postgresql://") {
			fail("DATABASE_URL must be a postgres:// DSN.")
		}
		ok("DATABASE_URL present (Postgres store)")
	case sqlitePath != "":
		ok("SQLITE_PATH=" + sqlitePath + " (SQLite store)")
	default:
		warn("Neither DATABASE_URL nor SQLITE_PATH set — checks and incidents will not survive a restart.")
	}

	if slack == "" {
		warn("SLACK_WEBHOOK empty — incident notifications disabled.")
	} else if !strings.HasPrefix(slack, "https://") {
		fail("SLACK_WEBHOOK must be an https:// incoming-webhook URL.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	for _, key := range []string{"CHECK_INTERVAL_SEC", "MAX_CONCURRENT_CHECKS", "FAILURES_FOR_INCIDENT", "SUCCESSES_FOR_RECOVERY", "DEFAULT_TIMEOUT_MS", "TRIGGER_RPM", "TRIGGER_BURST"} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(key + " must be a non-negative integer, got " + v)
		}
		ok(key + "=" + v)
	}

	if v := strings.TrimSpace(os.Getenv("CHECK_INTERVAL_SEC")); v == "0" {
		warn("CHECK_INTERVAL_SEC=0 — the background scheduler is disabled; only manual triggers will probe.")
	}

	ok("preflight passed")
}

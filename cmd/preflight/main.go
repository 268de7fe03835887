// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	apiAddr := strings.TrimSpace(os.Getenv("API_ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	if apiAddr == "" {
		warn("API_ADDR is empty; default 127.0.0.1:8080 will be used.")
	} else {
		ok("API_ADDR=" + apiAddr)
	}

	switch {
	case db != "" && sqlitePath != "":
		warn("both DATABASE_URL and SQLITE_PATH set; DATABASE_URL wins.")
	case db != "":
		ok("DATABASE_URL present (postgres store)")
	case sqlitePath != "":
		ok("SQLITE_PATH=" + sqlitePath + " (sqlite store)")
	default:
		warn("no DATABASE_URL or SQLITE_PATH — check history will live in memory only.")
	}

	for _, key := range []string{"INITIAL_DELAY", "CYCLE_INTERVAL", "PROBE_TIMEOUT"} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			fail(key + "=" + v + " is not a positive duration (use forms like 5s, 5m).")
		}
		ok(key + "=" + d.String())
	}

	if v := strings.TrimSpace(os.Getenv("CYCLE_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d < time.Minute {
			warn("CYCLE_INTERVAL under 1m will hammer targets; make sure that is intended.")
		}
	}

	ok("preflight passed")
}

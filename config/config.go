// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	ListenAddr string
	// StorageBackend is "memory" or "sqlite".
	StorageBackend string
	DatabasePath   string
	LogLevel       string

	Timezone   *time.Location
	DigestHour int

	// CalDAV sync. Empty credentials disable the sync surface.
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	// AI drafting. An empty URL disables the assistant surface.
	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	// Basic auth users as name:password pairs; empty means no auth layer.
	AuthUsers map[string]string
}

// Load reads configuration from the environment, applying defaults where a
// variable is unset.
func Load() (*Config, error) {
	listenAddr := os.Getenv("SCHOLAROS_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	backend := os.Getenv("SCHOLAROS_STORAGE")
	if backend == "" {
		backend = "sqlite"
	}
	if backend != "memory" && backend != "sqlite" {
		return nil, fmt.Errorf("SCHOLAROS_STORAGE must be memory or sqlite, got %q", backend)
	}

	dbPath := os.Getenv("SCHOLAROS_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/scholaros.db"
	}

	logLevel := os.Getenv("SCHOLAROS_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	tzName := os.Getenv("SCHOLAROS_TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHOLAROS_TIMEZONE: %w", err)
	}

	digestHour := 8
	if raw := os.Getenv("SCHOLAROS_DIGEST_HOUR"); raw != "" {
		digestHour, err = strconv.Atoi(raw)
		if err != nil || digestHour < 0 || digestHour > 23 {
			return nil, fmt.Errorf("SCHOLAROS_DIGEST_HOUR must be an hour between 0 and 23")
		}
	}

	cfg := &Config{
		ListenAddr:     listenAddr,
		StorageBackend: backend,
		DatabasePath:   dbPath,
		LogLevel:       logLevel,
		Timezone:       tz,
		DigestHour:     digestHour,

		CalDAVURL:      os.Getenv("SCHOLAROS_CALDAV_URL"),
		CalDAVUsername: os.Getenv("SCHOLAROS_CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("SCHOLAROS_CALDAV_PASSWORD"),
		CalDAVCalendar: os.Getenv("SCHOLAROS_CALDAV_CALENDAR"),

		AIBaseURL: os.Getenv("SCHOLAROS_AI_URL"),
		AIAPIKey:  os.Getenv("SCHOLAROS_AI_KEY"),
		AIModel:   os.Getenv("SCHOLAROS_AI_MODEL"),
	}

	users, err := parseUsers(os.Getenv("SCHOLAROS_AUTH_USERS"))
	if err != nil {
		return nil, err
	}
	cfg.AuthUsers = users

	return cfg, nil
}

// parseUsers splits "alice:secret,bob:hunter2" into a credential map.
func parseUsers(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("SCHOLAROS_AUTH_USERS entry %q is not name:password", pair)
		}
		users[name] = password
	}
	return users, nil
}

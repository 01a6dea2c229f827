/*
Package config resolves server configuration.

PRECEDENCE:
  1. Command-line flags
  2. Environment variables (a .env file in the working directory is loaded
     first when present; real environment values win over it)
  3. Built-in defaults

SETTINGS:
  -port       PORT                  HTTP server port (default: 8080)
  -db         DATABASE_PATH         SQLite path, ":memory:" allowed (default: achievements.db)
  -log-mode   LOG_MODE              dev | prod (default: dev)
  -seed-org   SEED_ORGANIZATION_ID  Seed the default catalog for this org on startup
              CORS_ORIGINS          Comma-separated allowed origins
*/
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DBPath      string
	LogMode     string
	SeedOrgID   string
	CORSOrigins []string
}

// LoadDotEnv loads .env if present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	cfg := Config{}
	fs.IntVar(&cfg.Port, "port", envInt("PORT", 8080), "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", envString("DATABASE_PATH", "achievements.db"), "SQLite database path")
	fs.StringVar(&cfg.LogMode, "log-mode", envString("LOG_MODE", "dev"), "log mode: dev or prod")
	fs.StringVar(&cfg.SeedOrgID, "seed-org", envString("SEED_ORGANIZATION_ID", ""), "seed the default catalog for this organization")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(envString("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080"))
	return cfg, nil
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

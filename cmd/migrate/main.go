package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"splitledger/internal/config"
	"splitledger/internal/db"
	"splitledger/pkg/logging"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.DBDriver == config.DriverMemory {
		slog.Error("the memory driver has no schema to migrate")
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	applied, err := migrate(database, cfg.MigrationsDir)
	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete", "applied", applied)
}

type migrator interface {
	execer
	Get(dest any, query string, args ...any) error
}

// migrate applies the Up section of every not yet recorded file in dir, in
// file name order, and returns how many it applied.
func migrate(database migrator, dir string) (int, error) {
	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)
		var count int
		if err := database.Get(&count, `SELECT COUNT(*) FROM schema_migrations WHERE filename = $1`, filename); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := applyFile(database, file); err != nil {
			return applied, fmt.Errorf("apply %s: %w", filename, err)
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", filename, err)
		}
		slog.Info("applied migration", "file", filename)
		applied++
	}
	return applied, nil
}

func applyFile(db execer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sections := strings.Split(string(content), "-- +migrate Down")
	if len(sections) == 0 {
		return nil
	}
	up := sections[0]
	statements := splitSQL(up)
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

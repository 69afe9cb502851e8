package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/japaniel/discoursehash/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens the SQLite record store at path and applies pending migrations.
// ":memory:" opens a private in-memory database limited to one connection.
//
// Transactions begin IMMEDIATE so an encode holds the write lock from its
// first read, which keeps entity folding atomic against other writers.
func Open(dbPath string, logger *zap.SugaredLogger) (*sql.DB, error) {
	dsn := "file:" + dbPath + "?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"
	memory := dbPath == ":memory:"
	if !memory {
		dsn += "&_journal_mode=WAL"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if memory {
		// Each connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "ping database %s", dbPath)
	}

	if err := InitDB(conn, logger); err != nil {
		conn.Close()
		return nil, err
	}
	if logger != nil {
		logger.Debugw("Database opened", "path", dbPath)
	}
	return conn, nil
}

// InitDB runs all pending migrations embedded in the binary, in file name order.
// Applied versions are recorded in schema_migrations.
func InitDB(conn *sql.DB, logger *zap.SugaredLogger) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, filename := range files {
		version := strings.SplitN(filename, "_", 2)[0]

		var exists bool
		err := conn.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			// schema_migrations is created by 000.
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			continue
		}

		body, err := migrations.ReadFile(path.Join("migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		tx, err := conn.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
		applied++
		if logger != nil {
			logger.Infow("Applied migration", "migration", filename, "version", version)
		}
	}

	if logger != nil && applied > 0 {
		logger.Infow("Migrations complete", "applied", applied, "total_migrations", len(files))
	}
	return nil
}

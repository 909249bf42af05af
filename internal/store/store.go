// Package store persists sensor readings to a relational database and
// serves recent history back. MariaDB/MySQL is the production backend;
// SQLite is supported for single-board deployments without a server and
// for tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// DefaultHistoryLimit is the history window used by the web layer.
const DefaultHistoryLimit = 50

var schema = map[string]string{
	DriverMySQL: `CREATE TABLE IF NOT EXISTS readings (
		id INT AUTO_INCREMENT PRIMARY KEY,
		sensor_type VARCHAR(50) NOT NULL,
		value DOUBLE NOT NULL,
		observed_at DATETIME(3) NOT NULL,
		INDEX idx_readings_type_time (sensor_type, observed_at)
	)`,
	DriverSQLite: `CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_type TEXT NOT NULL,
		value REAL NOT NULL,
		observed_at DATETIME NOT NULL
	)`,
}

// Store writes and queries the readings table.
type Store struct {
	db     *sql.DB
	driver string
	log    logrus.FieldLogger
}

// Open connects to the database. For MySQL, time parsing is forced on so
// observed_at scans into time.Time.
func Open(driver, dsn string, log logrus.FieldLogger) (*Store, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection: an in-memory database lives and dies with it
		db.SetMaxOpenConns(1)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, driver: driver, log: log}, nil
}

// Migrate creates the readings table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", s.driver, err)
	}
	if _, err := s.db.ExecContext(ctx, schema[s.driver]); err != nil {
		return fmt.Errorf("create readings table: %w", err)
	}
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_readings_type_time ON readings (sensor_type, observed_at)`); err != nil {
			return fmt.Errorf("create readings index: %w", err)
		}
	}
	return nil
}

// InsertReading appends one reading.
func (s *Store) InsertReading(ctx context.Context, r logic.Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (sensor_type, value, observed_at) VALUES (?, ?, ?)`,
		string(r.Kind), r.Value, r.ObservedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert %s reading: %w", r.Kind, err)
	}
	s.log.WithFields(logrus.Fields{"kind": r.Kind, "value": r.Value}).Debug("reading stored")
	return nil
}

// QueryRecent returns up to limit readings of kind, most recent first.
// Readings with equal timestamps are ordered by insertion, newest first.
func (s *Store) QueryRecent(ctx context.Context, kind logic.Kind, limit int) ([]logic.Reading, error) {
	if _, err := logic.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT value, observed_at FROM readings
		 WHERE sensor_type = ?
		 ORDER BY observed_at DESC, id DESC
		 LIMIT ?`,
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query %s readings: %w", kind, err)
	}
	defer rows.Close()

	var out []logic.Reading
	for rows.Next() {
		r := logic.Reading{Kind: kind}
		if err := rows.Scan(&r.Value, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan %s reading: %w", kind, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s readings: %w", kind, err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

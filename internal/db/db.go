package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// migrations run in order; PRAGMA user_version records how many have been applied
var migrations = []string{
	`CREATE TABLE skills (
		id               TEXT PRIMARY KEY,
		position         INTEGER NOT NULL,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		quote            TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL,
		magnitude        INTEGER NOT NULL DEFAULT 0,
		cost             INTEGER NOT NULL DEFAULT 0,
		target           TEXT NOT NULL,
		heal_mode        TEXT NOT NULL DEFAULT '',
		hits             INTEGER NOT NULL DEFAULT 0,
		crit_chance      REAL NOT NULL DEFAULT 0,
		crit_multiplier  REAL NOT NULL DEFAULT 0,
		status_kind      TEXT,
		status_duration  INTEGER,
		status_magnitude INTEGER
	)`,
	`CREATE TABLE templates (
		id         TEXT PRIMARY KEY,
		position   INTEGER NOT NULL,
		name       TEXT NOT NULL,
		level      INTEGER NOT NULL,
		max_hp     INTEGER NOT NULL,
		attack     INTEGER NOT NULL,
		defense    INTEGER NOT NULL,
		max_sp     INTEGER NOT NULL,
		initial_sp INTEGER NOT NULL
	)`,
	`CREATE TABLE template_skills (
		template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		skill_id    TEXT NOT NULL REFERENCES skills(id),
		PRIMARY KEY (template_id, position)
	)`,
	`CREATE TABLE encounters (
		kind      TEXT PRIMARY KEY,
		enemies   TEXT NOT NULL,
		min_level INTEGER NOT NULL,
		max_level INTEGER NOT NULL
	)`,
	`CREATE TABLE battle_reports (
		id         TEXT PRIMARY KEY,
		encounter  TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		turns      INTEGER NOT NULL,
		party      TEXT NOT NULL,
		transcript TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX battle_reports_created ON battle_reports(created_at)`,
	`ALTER TABLE skills ADD COLUMN ignore_defense INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE skills ADD COLUMN max_magnitude INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE skills ADD COLUMN status_chance REAL`,
	`ALTER TABLE battle_reports ADD COLUMN experience INTEGER NOT NULL DEFAULT 0`,
}

// DB is the sqlite store for the catalog and battle history
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at path and brings its schema up to date.
// ":memory:" gives a private in-memory database.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// :memory: databases exist per connection
	conn.SetMaxOpenConns(1)

	d := &DB{conn: conn}
	if err := d.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks the database is reachable
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	var version int
	if err := d.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if version >= len(migrations) {
		return nil
	}

	return d.tx(ctx, func(tx *sql.Tx) error {
		for i := version; i < len(migrations); i++ {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return errors.Wrapf(err, "migration %d", i+1)
			}
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return errors.Wrap(err, "write schema version")
		}
		glog.Infof("db: schema migrated from version %d to %d", version, len(migrations))
		return nil
	})
}

// tx runs fn in a transaction, rolling back when it fails
func (d *DB) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			glog.Errorf("db: rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

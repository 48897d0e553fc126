package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/mattn/go-sqlite3"
	_ "github.com/mattn/go-sqlite3"

	"github.com/foundation42/microkernel/internal/kernel"
)

// restartAuditLatestVersion is the highest migration version shipped with
// this package. Bump it alongside any new file under migrations/.
const restartAuditLatestVersion uint = 1

// migrationLogger adapts the package logger to migrate.Logger.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	log.InfoS(context.Background(), fmt.Sprintf(format, v...))
}

func (migrationLogger) Verbose() bool { return true }

// AuditSQLiteSink is a sqlite-backed implementation of supervisor.AuditSink;
// it satisfies that interface structurally through RecordRestart, without
// this package importing supervisor. It persists one row per
// restart decision so a restart-storm history survives a node crash,
// satisfying the spec §3 SUPPLEMENT for durable supervision bookkeeping.
type AuditSQLiteSink struct {
	db *sql.DB
}

// OpenAuditSink opens (creating if absent) a sqlite database at dbPath and
// migrates it to the latest restart-audit schema.
func OpenAuditSink(dbPath string) (*AuditSQLiteSink, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("services: creating audit db directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("services: opening audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrateAuditDB(db); err != nil {
		db.Close()
		return nil, err
	}

	return &AuditSQLiteSink{db: db}, nil
}

func migrateAuditDB(db *sql.DB) error {
	driver, err := sqlite_migrate.WithInstance(db, &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("services: creating sqlite migration driver: %w", err)
	}

	return applyAuditMigrations(driver)
}

func applyAuditMigrations(driver database.Driver) error {
	server, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return err
	}

	mig, err := migrate.NewWithInstance("migrations", server, "sqlite", driver)
	if err != nil {
		return err
	}
	mig.Log = migrationLogger{}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("services: reading audit db version: %w", err)
	}
	if dirty {
		return fmt.Errorf("services: audit db is dirty at version %v, "+
			"manual intervention required", version)
	}

	err = mig.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// RecordRestart implements supervisor.AuditSink. Failures are logged, not
// returned: a durable audit trail is a best-effort convenience, never load
// bearing for the in-memory restart-budget decision the caller already made.
func (a *AuditSQLiteSink) RecordRestart(supervisor kernel.ID, childIndex int,
	reason kernel.ExitReason, at time.Time) {

	_, err := a.db.Exec(
		`INSERT INTO restart_events (supervisor_id, child_index, reason, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		uint64(supervisor), childIndex, int(reason), at.UnixNano(),
	)
	if err != nil {
		log.WarnS(context.Background(), "Failed to record restart event",
			"supervisor_id", supervisor, "child_index", childIndex,
			"error", mapSQLError(err))
	}
}

// RestartEvent is one row read back from the restart-audit table.
type RestartEvent struct {
	SupervisorID kernel.ID
	ChildIndex   int
	Reason       kernel.ExitReason
	OccurredAt   time.Time
}

// History returns every recorded restart for the given supervisor, oldest
// first. Used by admin tooling (kernelctl) to inspect restart storms after
// the fact.
func (a *AuditSQLiteSink) History(supervisor kernel.ID) ([]RestartEvent, error) {
	rows, err := a.db.Query(
		`SELECT supervisor_id, child_index, reason, occurred_at
		 FROM restart_events WHERE supervisor_id = ? ORDER BY id ASC`,
		uint64(supervisor),
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var events []RestartEvent
	for rows.Next() {
		var (
			supID   uint64
			idx     int
			reason  int
			nanos   int64
		)
		if err := rows.Scan(&supID, &idx, &reason, &nanos); err != nil {
			return nil, mapSQLError(err)
		}
		events = append(events, RestartEvent{
			SupervisorID: kernel.ID(supID),
			ChildIndex:   idx,
			Reason:       kernel.ExitReason(reason),
			OccurredAt:   time.Unix(0, nanos),
		})
	}

	return events, rows.Err()
}

// Close releases the underlying database handle.
func (a *AuditSQLiteSink) Close() error {
	return a.db.Close()
}

// mapSQLError translates a sqlite3 error into a coarser category, mirroring
// the daemon's general store error-mapping convention.
func mapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return fmt.Errorf("sqlite error (code %v): %w", sqliteErr.Code, err)
	}

	return err
}

// Package db pkg/db/db.go provides SQLite persistence for machine state
// and the state change ledger.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- Current machine state, one row per machine
	CREATE TABLE IF NOT EXISTS machines (
		machine_id TEXT PRIMARY KEY,
		running BOOLEAN NOT NULL DEFAULT 0,
		empty BOOLEAN NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT 0,
		room TEXT,
		last_update TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- State change ledger, append-only
	CREATE TABLE IF NOT EXISTS machine_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_id TEXT NOT NULL,
		running BOOLEAN NOT NULL DEFAULT 0,
		empty BOOLEAN NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT 0,
		timestamp TIMESTAMP NOT NULL,
		change_type TEXT NOT NULL,
		FOREIGN KEY (machine_id) REFERENCES machines(machine_id) ON DELETE CASCADE
	);

	-- Indexes for better query performance
	CREATE INDEX IF NOT EXISTS idx_machine_history_machine_time
		ON machine_history(machine_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_machine_history_time
		ON machine_history(timestamp);

	PRAGMA foreign_keys=ON;
	`
)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToEnableWAL, err)
	}

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}

// GetMachineState returns the current snapshot for one machine, or
// ErrNotFound when the machine has never reported.
func (db *DB) GetMachineState(machineID string) (*MachineState, error) {
	const query = `
        SELECT machine_id, running, empty, available, room, last_update, created_at, updated_at
        FROM machines
        WHERE machine_id = ?
    `

	state, err := scanMachineState(db.QueryRow(query, machineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, machineID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w machine state: %w", ErrFailedToQuery, err)
	}

	return state, nil
}

// ListMachineStates returns every known machine, including ones far past
// any offline threshold.
func (db *DB) ListMachineStates() ([]MachineState, error) {
	const query = `
        SELECT machine_id, running, empty, available, room, last_update, created_at, updated_at
        FROM machines
        ORDER BY machine_id
    `

	rows, err := db.Query(query) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w machine states: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	var states []MachineState

	for rows.Next() {
		state, err := scanMachineState(rows)
		if err != nil {
			return nil, fmt.Errorf("%w machine row: %w", ErrFailedToScan, err)
		}

		states = append(states, *state)
	}

	return states, nil
}

// UpsertMachineState writes the current snapshot for a machine and, when
// event is non-nil, appends the matching ledger row in the same
// transaction. A non-empty state.Room replaces the stored room; an empty
// one preserves it. created_at is only written on first insert.
func (db *DB) UpsertMachineState(state *MachineState, event *ChangeEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}
	defer rollbackOnError(tx, &err)

	err = updateExistingMachine(tx, state)
	if errors.Is(err, sql.ErrNoRows) {
		err = insertNewMachine(tx, state)
	}

	if err != nil {
		return fmt.Errorf("%w machine state: %w", ErrFailedToUpdate, err)
	}

	if event != nil {
		if err = insertChangeEvent(tx, event); err != nil {
			return err
		}
	}

	err = tx.Commit()

	return err
}

func updateExistingMachine(tx *sql.Tx, state *MachineState) error {
	result, err := tx.Exec(`
        UPDATE machines
        SET running = ?,
            empty = ?,
            available = ?,
            room = COALESCE(NULLIF(?, ''), room),
            last_update = ?,
            updated_at = ?
        WHERE machine_id = ?
    `, state.Running, state.Empty, state.Available, state.Room,
		state.LastUpdate, state.UpdatedAt, state.MachineID)
	if err != nil {
		return fmt.Errorf("failed to update machine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func insertNewMachine(tx *sql.Tx, state *MachineState) error {
	_, err := tx.Exec(`
        INSERT INTO machines (machine_id, running, empty, available, room, last_update, created_at, updated_at)
        VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)
    `, state.MachineID, state.Running, state.Empty, state.Available,
		state.Room, state.LastUpdate, state.CreatedAt, state.UpdatedAt)

	if err != nil {
		return fmt.Errorf("%w machine: %w", ErrFailedToInsert, err)
	}

	return nil
}

// UpdateAvailability flips the stored available flag, guarded by the
// last_update value the caller observed: if another report landed in
// between, the row is left alone and no ledger entry is written.
func (db *DB) UpdateAvailability(machineID string, available bool, seenLastUpdate, now time.Time, event *ChangeEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}
	defer rollbackOnError(tx, &err)

	result, err := tx.Exec(`
        UPDATE machines
        SET available = ?,
            updated_at = ?
        WHERE machine_id = ? AND available = ? AND last_update = ?
    `, available, now, machineID, !available, seenLastUpdate)
	if err != nil {
		return fmt.Errorf("%w availability: %w", ErrFailedToUpdate, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 && event != nil {
		if err = insertChangeEvent(tx, event); err != nil {
			return err
		}
	}

	err = tx.Commit()

	return err
}

func insertChangeEvent(tx *sql.Tx, event *ChangeEvent) error {
	_, err := tx.Exec(`
        INSERT INTO machine_history (machine_id, running, empty, available, timestamp, change_type)
        VALUES (?, ?, ?, ?, ?, ?)
    `, event.MachineID, event.Running, event.Empty, event.Available,
		event.Timestamp, event.ChangeType)

	if err != nil {
		return fmt.Errorf("%w change event: %w", ErrFailedToInsert, err)
	}

	return nil
}

// GetChangeEvents returns ledger rows matching the filter, newest first.
func (db *DB) GetChangeEvents(filter EventFilter) ([]ChangeEvent, error) {
	query := `
        SELECT id, machine_id, running, empty, available, timestamp, change_type
        FROM machine_history
    `

	var (
		clauses []string
		args    []interface{}
	)

	if filter.MachineID != "" {
		clauses = append(clauses, "machine_id = ?")
		args = append(args, filter.MachineID)
	}

	if !filter.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Start)
	}

	if !filter.End.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.End)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w change events: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	var events []ChangeEvent

	for rows.Next() {
		var e ChangeEvent

		if err := rows.Scan(&e.ID, &e.MachineID, &e.Running, &e.Empty, &e.Available, &e.Timestamp, &e.ChangeType); err != nil {
			return nil, fmt.Errorf("%w event row: %w", ErrFailedToScan, err)
		}

		events = append(events, e)
	}

	return events, nil
}

// GetMachineStats aggregates the ledger per machine: total rows, rows with
// each flag set, and the number of distinct days with activity. An empty
// machineID aggregates every machine.
func (db *DB) GetMachineStats(machineID string) (map[string]MachineStats, error) {
	const query = `
        SELECT machine_id,
               COUNT(*),
               SUM(CASE WHEN running THEN 1 ELSE 0 END),
               SUM(CASE WHEN empty THEN 1 ELSE 0 END),
               COUNT(DISTINCT date(timestamp))
        FROM machine_history
        WHERE (? = '' OR machine_id = ?)
        GROUP BY machine_id
    `

	rows, err := db.Query(query, machineID, machineID) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w machine stats: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	stats := make(map[string]MachineStats)

	for rows.Next() {
		var (
			id string
			s  MachineStats
		)

		if err := rows.Scan(&id, &s.TotalChanges, &s.TotalRunningChanges, &s.TotalEmptyChanges, &s.DaysActive); err != nil {
			return nil, fmt.Errorf("%w stats row: %w", ErrFailedToScan, err)
		}

		stats[id] = s
	}

	return stats, nil
}

// CleanOldHistory removes ledger rows older than the retention period.
// Machine state rows are never removed here.
func (db *DB) CleanOldHistory(retentionPeriod time.Duration) error {
	cutoff := time.Now().Add(-retentionPeriod)

	if _, err := db.Exec(
		"DELETE FROM machine_history WHERE timestamp < ?",
		cutoff,
	); err != nil {
		return fmt.Errorf("%w machine history: %w", ErrFailedToClean, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMachineState(row rowScanner) (*MachineState, error) {
	var (
		state MachineState
		room  sql.NullString
	)

	err := row.Scan(
		&state.MachineID,
		&state.Running,
		&state.Empty,
		&state.Available,
		&room,
		&state.LastUpdate,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.Room = room.String

	return &state, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}

func rollbackOnError(tx *sql.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("Error rolling back transaction: %v", rbErr)
		}
	}
}

/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:

	Implements all persistence interfaces (attendance.IngestStore,
	attendance.ScheduleProvider, attendance.TypeResolver) using SQLite.
	In production, the same patterns apply to PostgreSQL - only minor SQL
	dialect differences.

KEY TABLES:

	punches:          Draft and classified punches, the pipeline's output
	clock_events:     Raw device events, the pipeline's input
	punch_types:      Reference rows mapping type names to numeric ids
	employees:        Employee records with department membership
	shift_schedules:  Employee- and department-level schedules

INDEXES:

	Critical indexes for the hot paths:
	- idx_events_ready: ready-event selection for ingestion batches
	- idx_punches_employee_time: per-employee range queries
	- idx_punches_status_date: unresolved-punch selection per run
	- idx_events_employee_device_time: duplicate suppression lookups

CONCURRENCY:

	Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
	database-level concurrency control handles this instead.

WAL MODE:

	SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
	- Multiple readers don't block
	- Single writer at a time
	- Better crash recovery

USAGE:

	store, err := sqlite.New("./data/attendance.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

MIGRATION:

	Schema is auto-migrated on New(), including seeding the punch_types
	reference rows. For production, use a proper migration tool
	(golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/store.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian/attendance-engine/attendance"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	typeIDs   map[attendance.PunchType]int64
	typeNames map[int64]attendance.PunchType
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:        db,
		typeIDs:   make(map[attendance.PunchType]int64),
		typeNames: make(map[int64]attendance.PunchType),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.loadTypeMap(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load punch type map: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema and seeds reference data.
func (s *Store) migrate() error {
	schema := `
	-- Punches (pipeline output)
	CREATE TABLE IF NOT EXISTS punches (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		device_id TEXT,
		punch_time TEXT NOT NULL,
		shift_date TEXT NOT NULL,
		punch_type TEXT NOT NULL DEFAULT 'unclassified',
		punch_state TEXT NOT NULL DEFAULT 'unknown',
		status TEXT NOT NULL DEFAULT 'Incomplete',
		issue_notes TEXT,
		is_manual BOOLEAN DEFAULT FALSE,
		source TEXT NOT NULL DEFAULT 'device',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_punches_employee_time
		ON punches(employee_id, punch_time);
	CREATE INDEX IF NOT EXISTS idx_punches_status_date
		ON punches(status, shift_date);
	CREATE INDEX IF NOT EXISTS idx_punches_employee_shift_date
		ON punches(employee_id, shift_date);

	-- Clock events (pipeline input)
	CREATE TABLE IF NOT EXISTS clock_events (
		id TEXT PRIMARY KEY,
		employee_id TEXT,
		device_id TEXT,
		event_time TEXT NOT NULL,
		shift_date TEXT NOT NULL,
		is_processed BOOLEAN DEFAULT FALSE,
		processed_at TEXT,
		attendance_id TEXT,
		batch_id TEXT,
		processing_error TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: ready-event selection for ingestion batches
	CREATE INDEX IF NOT EXISTS idx_events_ready
		ON clock_events(is_processed, event_time)
		WHERE is_processed = FALSE;
	CREATE INDEX IF NOT EXISTS idx_events_employee_shift_date
		ON clock_events(employee_id, shift_date);
	CREATE INDEX IF NOT EXISTS idx_events_employee_device_time
		ON clock_events(employee_id, device_id, event_time);
	CREATE INDEX IF NOT EXISTS idx_events_batch
		ON clock_events(batch_id) WHERE batch_id IS NOT NULL;

	-- Punch type reference rows
	CREATE TABLE IF NOT EXISTS punch_types (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		direction TEXT NOT NULL
	);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department_id);

	-- Shift schedules: employee-specific rows carry an employee_id,
	-- department-level rows carry a department_id. Resolution tries the
	-- employee row first.
	CREATE TABLE IF NOT EXISTS shift_schedules (
		id TEXT PRIMARY KEY,
		employee_id TEXT,
		department_id TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		lunch_start_time TEXT,
		lunch_stop_time TEXT,
		lunch_duration_minutes INTEGER DEFAULT 30,
		daily_hours REAL DEFAULT 8,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_employee
		ON shift_schedules(employee_id) WHERE employee_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_schedules_department
		ON shift_schedules(department_id) WHERE department_id IS NOT NULL;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedPunchTypes()
}

// seedPunchTypes inserts the closed type vocabulary with stable ids.
func (s *Store) seedPunchTypes() error {
	for i, t := range attendance.AllPunchTypes() {
		_, err := s.db.Exec(`
			INSERT INTO punch_types (id, name, display_name, direction)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			i+1, string(t), t.DisplayName(), string(attendance.StateFor(t)),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadTypeMap() error {
	rows, err := s.db.Query("SELECT id, name FROM punch_types")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		t := attendance.PunchType(name)
		s.typeIDs[t] = id
		s.typeNames[id] = t
	}
	return rows.Err()
}

// =============================================================================
// TYPE RESOLVER (attendance.TypeResolver interface)
// =============================================================================

func (s *Store) IDFor(t attendance.PunchType) (int64, bool) {
	id, ok := s.typeIDs[t]
	return id, ok
}

func (s *Store) TypeFor(id int64) (attendance.PunchType, bool) {
	t, ok := s.typeNames[id]
	return t, ok
}

// =============================================================================
// PUNCH STORE (attendance.PunchStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreatePunches persists a batch of draft punches, assigning ids.
func (s *Store) CreatePunches(ctx context.Context, punches []*attendance.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPunches(ctx, s.db, punches)
}

func (s *Store) createPunches(ctx context.Context, db execer, punches []*attendance.Punch) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for _, p := range punches {
		if p.ID == "" {
			p.ID = attendance.PunchID(newID())
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO punches
			(id, employee_id, device_id, punch_time, shift_date, punch_type,
			 punch_state, status, issue_notes, is_manual, source, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.EmployeeID, p.DeviceID,
			p.PunchTime.UTC().Format(time.RFC3339),
			p.ShiftDate.Format("2006-01-02"),
			string(p.Type), string(p.State), string(p.Status),
			p.IssueNotes, p.IsManual, p.Source, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert punch: %w", err)
		}
	}
	return nil
}

// UpdatePunch persists a punch's classification fields.
func (s *Store) UpdatePunch(ctx context.Context, punch *attendance.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePunch(ctx, s.db, punch)
}

func (s *Store) updatePunch(ctx context.Context, db execer, punch *attendance.Punch) error {
	res, err := db.ExecContext(ctx, `
		UPDATE punches
		SET punch_type = ?, punch_state = ?, status = ?, issue_notes = ?, updated_at = ?
		WHERE id = ?`,
		string(punch.Type), string(punch.State), string(punch.Status),
		punch.IssueNotes, time.Now().UTC().Format(time.RFC3339), punch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update punch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrPunchNotFound
	}
	return nil
}

// GetPunch returns a punch by id.
func (s *Store) GetPunch(ctx context.Context, id attendance.PunchID) (*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, punchSelect+" WHERE id = ?", id)
	p, err := scanPunchRow(row)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrPunchNotFound
	}
	return p, err
}

// PunchesForEmployee returns an employee's punches in [from, to].
func (s *Store) PunchesForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := punchSelect + `
		WHERE employee_id = ? AND punch_time >= ? AND punch_time <= ?
		ORDER BY punch_time ASC`
	return s.queryPunches(ctx, query, employeeID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

// UnresolvedPunches returns punches awaiting classification in the range.
func (s *Store) UnresolvedPunches(ctx context.Context, from, to time.Time) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := punchSelect + `
		WHERE status IN ('Incomplete', 'NeedsReview')
		  AND shift_date >= ? AND shift_date <= ?
		ORDER BY employee_id ASC, punch_time ASC`
	return s.queryPunches(ctx, query,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// TrainingPunches returns the most recent classified Complete punches.
func (s *Store) TrainingPunches(ctx context.Context, limit int) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := punchSelect + `
		WHERE status = 'Complete' AND punch_type != 'unclassified'
		ORDER BY punch_time DESC
		LIMIT ?`
	return s.queryPunches(ctx, query, limit)
}

const punchSelect = `
	SELECT id, employee_id, device_id, punch_time, shift_date, punch_type,
	       punch_state, status, issue_notes, is_manual, source
	FROM punches`

func (s *Store) queryPunches(ctx context.Context, query string, args ...any) ([]*attendance.Punch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query punches: %w", err)
	}
	defer rows.Close()

	var punches []*attendance.Punch
	for rows.Next() {
		p, err := scanPunchRow(rows)
		if err != nil {
			return nil, err
		}
		punches = append(punches, p)
	}
	return punches, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPunchRow(row rowScanner) (*attendance.Punch, error) {
	var (
		p          attendance.Punch
		deviceID   sql.NullString
		punchTime  string
		shiftDate  string
		punchType  string
		punchState string
		status     string
		issueNotes sql.NullString
	)

	err := row.Scan(
		&p.ID, &p.EmployeeID, &deviceID, &punchTime, &shiftDate,
		&punchType, &punchState, &status, &issueNotes, &p.IsManual, &p.Source,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan punch: %w", err)
	}

	p.DeviceID = deviceID.String
	p.PunchTime, _ = time.Parse(time.RFC3339, punchTime)
	p.ShiftDate, _ = time.Parse("2006-01-02", shiftDate)
	p.Type = attendance.PunchType(punchType)
	p.State = attendance.PunchState(punchState)
	p.Status = attendance.Status(status)
	p.IssueNotes = issueNotes.String
	return &p, nil
}

// =============================================================================
// EVENT STORE (attendance.EventStore interface)
// =============================================================================

// CreateEvent persists a raw device event.
func (s *Store) CreateEvent(ctx context.Context, event *attendance.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEvent(ctx, s.db, event)
}

func (s *Store) createEvent(ctx context.Context, db execer, event *attendance.ClockEvent) error {
	if event.ID == "" {
		event.ID = attendance.EventID(newID())
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO clock_events
		(id, employee_id, device_id, event_time, shift_date, is_processed, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)`,
		event.ID, nullString(string(event.EmployeeID)), event.DeviceID,
		event.EventTime.UTC().Format(time.RFC3339),
		event.ShiftDate.Format("2006-01-02"),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert clock event: %w", err)
	}
	return nil
}

// ReadyEvents returns up to limit events eligible for processing.
func (s *Store) ReadyEvents(ctx context.Context, limit int) ([]*attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := eventSelect + `
		WHERE is_processed = FALSE
		  AND (processing_error IS NULL OR processing_error = '')
		ORDER BY event_time ASC
		LIMIT ?`
	return s.queryEvents(ctx, query, limit)
}

// EventsForEmployee returns an employee's events with shift dates in
// [from, to].
func (s *Store) EventsForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := eventSelect + `
		WHERE employee_id = ? AND shift_date >= ? AND shift_date <= ?
		ORDER BY event_time ASC`
	return s.queryEvents(ctx, query, employeeID,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// MarkProcessed records a successful ingestion.
func (s *Store) MarkProcessed(ctx context.Context, eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markProcessed(ctx, s.db, eventID, attendanceID, batchID, at)
}

func (s *Store) markProcessed(ctx context.Context, db execer, eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE clock_events
		SET is_processed = TRUE, processed_at = ?, attendance_id = ?,
		    batch_id = ?, processing_error = NULL
		WHERE id = ?`,
		at.UTC().Format(time.RFC3339), attendanceID, batchID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrEventNotFound
	}
	return nil
}

// MarkError records a processing failure.
func (s *Store) MarkError(ctx context.Context, eventID attendance.EventID, message, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clock_events
		SET processing_error = ?, batch_id = ?
		WHERE id = ?`,
		message, batchID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event errored: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrEventNotFound
	}
	return nil
}

// ClearErrors wipes processing errors and batch ids from errored events.
func (s *Store) ClearErrors(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clock_events
		SET processing_error = NULL, batch_id = NULL
		WHERE processing_error IS NOT NULL AND processing_error != ''`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear event errors: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// HasDuplicateWithin reports whether the device already reported for the
// employee inside the suppression window.
func (s *Store) HasDuplicateWithin(ctx context.Context, employeeID attendance.EmployeeID, deviceID string, at time.Time, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clock_events
		WHERE employee_id = ? AND device_id = ?
		  AND event_time >= ? AND event_time <= ?`,
		employeeID, deviceID,
		at.Add(-window).UTC().Format(time.RFC3339),
		at.Add(window).UTC().Format(time.RFC3339),
	).Scan(&count)
	return count > 0, err
}

// Stats summarizes the clock event table.
func (s *Store) Stats(ctx context.Context) (attendance.EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st attendance.EventStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_processed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT is_processed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processing_error IS NOT NULL AND processing_error != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT is_processed
				AND (processing_error IS NULL OR processing_error = '')
				AND employee_id IS NOT NULL AND employee_id != '' THEN 1 ELSE 0 END), 0)
		FROM clock_events`,
	).Scan(&st.Total, &st.Processed, &st.Unprocessed, &st.WithErrors, &st.Ready)
	return st, err
}

const eventSelect = `
	SELECT id, employee_id, device_id, event_time, shift_date, is_processed,
	       processed_at, attendance_id, batch_id, processing_error
	FROM clock_events`

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]*attendance.ClockEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clock events: %w", err)
	}
	defer rows.Close()

	var events []*attendance.ClockEvent
	for rows.Next() {
		var (
			e               attendance.ClockEvent
			employeeID      sql.NullString
			deviceID        sql.NullString
			eventTime       string
			shiftDate       string
			processedAt     sql.NullString
			attendanceID    sql.NullString
			batchID         sql.NullString
			processingError sql.NullString
		)
		err := rows.Scan(
			&e.ID, &employeeID, &deviceID, &eventTime, &shiftDate,
			&e.Processed, &processedAt, &attendanceID, &batchID, &processingError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clock event: %w", err)
		}

		e.EmployeeID = attendance.EmployeeID(employeeID.String)
		e.DeviceID = deviceID.String
		e.EventTime, _ = time.Parse(time.RFC3339, eventTime)
		e.ShiftDate, _ = time.Parse("2006-01-02", shiftDate)
		if processedAt.Valid {
			t, err := time.Parse(time.RFC3339, processedAt.String)
			if err == nil {
				e.ProcessedAt = &t
			}
		}
		e.AttendanceID = attendance.PunchID(attendanceID.String)
		e.BatchID = batchID.String
		e.ProcessingError = processingError.String
		events = append(events, &e)
	}
	return events, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (attendance.IngestStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. This is the group
// atomicity boundary for ingestion: all of a group's punches and event
// markers commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes writes through the open transaction. Reads that the
// ingestion flow does not issue inside a transaction go to the parent
// connection; the parent's lock is already held.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreatePunches(ctx context.Context, punches []*attendance.Punch) error {
	return ts.parent.createPunches(ctx, ts.tx, punches)
}

func (ts *txStore) UpdatePunch(ctx context.Context, punch *attendance.Punch) error {
	return ts.parent.updatePunch(ctx, ts.tx, punch)
}

func (ts *txStore) CreateEvent(ctx context.Context, event *attendance.ClockEvent) error {
	return ts.parent.createEvent(ctx, ts.tx, event)
}

func (ts *txStore) MarkProcessed(ctx context.Context, eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	return ts.parent.markProcessed(ctx, ts.tx, eventID, attendanceID, batchID, at)
}

func (ts *txStore) MarkError(ctx context.Context, eventID attendance.EventID, message, batchID string) error {
	_, err := ts.tx.ExecContext(ctx, `
		UPDATE clock_events SET processing_error = ?, batch_id = ? WHERE id = ?`,
		message, batchID, eventID,
	)
	return err
}

func (ts *txStore) GetPunch(ctx context.Context, id attendance.PunchID) (*attendance.Punch, error) {
	row := ts.tx.QueryRowContext(ctx, punchSelect+" WHERE id = ?", id)
	p, err := scanPunchRow(row)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrPunchNotFound
	}
	return p, err
}

func (ts *txStore) PunchesForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.Punch, error) {
	return nil, attendance.ErrStoreRequired
}

func (ts *txStore) UnresolvedPunches(ctx context.Context, from, to time.Time) ([]*attendance.Punch, error) {
	return nil, attendance.ErrStoreRequired
}

func (ts *txStore) TrainingPunches(ctx context.Context, limit int) ([]*attendance.Punch, error) {
	return nil, attendance.ErrStoreRequired
}

func (ts *txStore) ReadyEvents(ctx context.Context, limit int) ([]*attendance.ClockEvent, error) {
	return nil, attendance.ErrStoreRequired
}

func (ts *txStore) EventsForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.ClockEvent, error) {
	return nil, attendance.ErrStoreRequired
}

func (ts *txStore) ClearErrors(ctx context.Context) (int, error) {
	return 0, attendance.ErrStoreRequired
}

func (ts *txStore) HasDuplicateWithin(ctx context.Context, employeeID attendance.EmployeeID, deviceID string, at time.Time, window time.Duration) (bool, error) {
	return false, attendance.ErrStoreRequired
}

func (ts *txStore) Stats(ctx context.Context) (attendance.EventStats, error) {
	return attendance.EventStats{}, attendance.ErrStoreRequired
}

func (ts *txStore) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	// Nested transactions join the outer one.
	return fn(ts)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is a stored employee record.
type Employee struct {
	ID           attendance.EmployeeID
	Name         string
	DepartmentID string
	CreatedAt    time.Time
}

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, department_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id`,
		emp.ID, emp.Name, nullString(emp.DepartmentID),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee returns an employee by id.
func (s *Store) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		emp        Employee
		department sql.NullString
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, department_id, created_at FROM employees WHERE id = ?", id,
	).Scan(&emp.ID, &emp.Name, &department, &createdAt)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	emp.DepartmentID = department.String
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// =============================================================================
// SCHEDULE PROVIDER (attendance.ScheduleProvider interface)
// =============================================================================

// SaveSchedule inserts or replaces a schedule row. Exactly one of
// EmployeeID/DepartmentID should be set.
func (s *Store) SaveSchedule(ctx context.Context, id string, employeeID attendance.EmployeeID, departmentID string, sched *attendance.ShiftSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO shift_schedules
		(id, employee_id, department_id, start_time, end_time,
		 lunch_start_time, lunch_stop_time, lunch_duration_minutes, daily_hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(string(employeeID)), nullString(departmentID),
		sched.StartTime.String(), sched.EndTime.String(),
		sched.LunchStartTime.String(), sched.LunchStopTime.String(),
		sched.LunchDurationMinutes, sched.DailyHours,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ScheduleFor resolves the employee-specific schedule first, then the
// employee's department schedule. Returns (nil, nil) when neither
// exists so callers flag the day for review instead of guessing.
func (s *Store) ScheduleFor(ctx context.Context, employeeID attendance.EmployeeID) (*attendance.ShiftSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, err := s.querySchedule(ctx,
		scheduleSelect+" WHERE employee_id = ? LIMIT 1", employeeID)
	if err != nil || sched != nil {
		return sched, err
	}

	var department sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT department_id FROM employees WHERE id = ?", employeeID,
	).Scan(&department)
	if err == sql.ErrNoRows || !department.Valid {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.querySchedule(ctx,
		scheduleSelect+" WHERE department_id = ? LIMIT 1", department.String)
}

const scheduleSelect = `
	SELECT id, start_time, end_time, lunch_start_time, lunch_stop_time,
	       lunch_duration_minutes, daily_hours
	FROM shift_schedules`

func (s *Store) querySchedule(ctx context.Context, query string, args ...any) (*attendance.ShiftSchedule, error) {
	var (
		sched                attendance.ShiftSchedule
		startTime            string
		endTime              string
		lunchStart           sql.NullString
		lunchStop            sql.NullString
		lunchDurationMinutes sql.NullInt64
		dailyHours           sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sched.ID, &startTime, &endTime, &lunchStart, &lunchStop,
		&lunchDurationMinutes, &dailyHours,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}

	if sched.StartTime, err = attendance.ParseClockTime(startTime); err != nil {
		return nil, fmt.Errorf("invalid schedule start_time: %w", err)
	}
	if sched.EndTime, err = attendance.ParseClockTime(endTime); err != nil {
		return nil, fmt.Errorf("invalid schedule end_time: %w", err)
	}
	if lunchStart.Valid {
		if sched.LunchStartTime, err = attendance.ParseClockTime(lunchStart.String); err != nil {
			return nil, fmt.Errorf("invalid schedule lunch_start_time: %w", err)
		}
	}
	if lunchStop.Valid {
		if sched.LunchStopTime, err = attendance.ParseClockTime(lunchStop.String); err != nil {
			return nil, fmt.Errorf("invalid schedule lunch_stop_time: %w", err)
		}
	}
	sched.LunchDurationMinutes = int(lunchDurationMinutes.Int64)
	sched.DailyHours = dailyHours.Float64
	return &sched, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func newID() string {
	return uuid.NewString()
}

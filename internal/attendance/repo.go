package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Method tags how a registration was produced.
type Method string

const (
	MethodDevice         Method = "device"
	MethodManualQR       Method = "manual_qr"
	MethodManualDocument Method = "manual_document"
)

// Attendance is the join record between an event and a student. It is
// created only through the registrar, never updated, and deleted only by
// explicit administrative action.
type Attendance struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	StudentID    string    `json:"student_id"`
	DeviceID     *string   `json:"device_id,omitempty"`
	ScannedCode  string    `json:"scanned_code"`
	Method       Method    `json:"method"`
	RegisteredBy *string   `json:"registered_by,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Record is an attendance row joined with its student summary for
// per-event listings.
type Record struct {
	Attendance
	StudentName string `json:"student_name"`
	CarnetCode  string `json:"carnet_code"`
	NationalID  string `json:"national_id"`
	Email       string `json:"email"`
	Program     string `json:"program"`
	DeviceCode  string `json:"device_code,omitempty"`
}

// EventRecord is an attendance row joined with its event summary for
// per-student history.
type EventRecord struct {
	Attendance
	EventName  string    `json:"event_name"`
	EventDate  time.Time `json:"event_date"`
	EventPlace string    `json:"event_place"`
}

// HourCount is one bucket of the per-event hourly histogram.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// ExportRow is the flat, column-stable shape the spreadsheet collaborator
// consumes. Column order is part of the contract.
type ExportRow struct {
	AttendanceID string    `json:"attendance_id"`
	EventName    string    `json:"event_name"`
	EventDate    time.Time `json:"event_date"`
	EventPeriod  string    `json:"event_period"`
	StudentName  string    `json:"student_name"`
	NationalID   string    `json:"national_id"`
	CarnetCode   string    `json:"carnet_code"`
	Email        string    `json:"email"`
	Faculty      string    `json:"faculty"`
	Program      string    `json:"program"`
	Method       Method    `json:"method"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Repository persists attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new attendance row. The unique index on
// (event_id, student_id) rejects concurrent duplicates; callers must
// treat a unique violation as the duplicate outcome, not a fault.
func (r *Repository) Insert(ctx context.Context, a Attendance) (Attendance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, event_id, student_id, device_id, scanned_code, method, registered_by, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, a.ID, a.EventID, a.StudentID, a.DeviceID, a.ScannedCode, a.Method, a.RegisteredBy, a.RegisteredAt)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attendance{}, err
	}
	return a, nil
}

// GetForPair returns the attendance for (event, student), or nil.
func (r *Repository) GetForPair(ctx context.Context, eventID, studentID string) (*Attendance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, student_id, device_id, scanned_code, method, registered_by, registered_at, created_at
		FROM attendance
		WHERE event_id = $1 AND student_id = $2
	`, eventID, studentID)
	var a Attendance
	err := row.Scan(&a.ID, &a.EventID, &a.StudentID, &a.DeviceID, &a.ScannedCode, &a.Method, &a.RegisteredBy, &a.RegisteredAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByEvent returns an event's registrations with student summaries,
// newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.student_id, a.device_id, a.scanned_code, a.method,
			a.registered_by, a.registered_at, a.created_at,
			s.name, s.carnet_code, s.national_id, s.email, s.program,
			COALESCE(d.code, '')
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		LEFT JOIN devices d ON d.id = a.device_id
		WHERE a.event_id = $1
		ORDER BY a.registered_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.StudentID, &rec.DeviceID, &rec.ScannedCode,
			&rec.Method, &rec.RegisteredBy, &rec.RegisteredAt, &rec.CreatedAt,
			&rec.StudentName, &rec.CarnetCode, &rec.NationalID, &rec.Email, &rec.Program,
			&rec.DeviceCode); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListByStudent returns a student's attendance history with event
// summaries, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID string) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.student_id, a.device_id, a.scanned_code, a.method,
			a.registered_by, a.registered_at, a.created_at,
			e.name, e.event_date, e.place
		FROM attendance a
		JOIN events e ON e.id = a.event_id
		WHERE a.student_id = $1
		ORDER BY a.registered_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.StudentID, &rec.DeviceID, &rec.ScannedCode,
			&rec.Method, &rec.RegisteredBy, &rec.RegisteredAt, &rec.CreatedAt,
			&rec.EventName, &rec.EventDate, &rec.EventPlace); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// HourlyStats returns the per-hour registration histogram for an event.
func (r *Repository) HourlyStats(ctx context.Context, eventID string) (int, []HourCount, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return 0, nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM registered_at)::int AS hour, COUNT(*)::int
		FROM attendance
		WHERE event_id = $1
		GROUP BY hour
		ORDER BY hour
	`, eventID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var res []HourCount
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return 0, nil, err
		}
		res = append(res, hc)
	}
	return total, res, rows.Err()
}

// Delete removes an attendance row. Returns false when absent.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const exportSelect = `
	SELECT a.id, e.name, e.event_date, e.period,
		s.name, s.national_id, s.carnet_code, s.email, s.faculty, s.program,
		a.method, a.registered_at
	FROM attendance a
	JOIN events e ON e.id = a.event_id
	JOIN students s ON s.id = a.student_id`

func scanExportRow(row interface{ Scan(...any) error }) (ExportRow, error) {
	var r ExportRow
	err := row.Scan(&r.AttendanceID, &r.EventName, &r.EventDate, &r.EventPeriod,
		&r.StudentName, &r.NationalID, &r.CarnetCode, &r.Email, &r.Faculty, &r.Program,
		&r.Method, &r.RegisteredAt)
	return r, err
}

// ExportRows returns live flat rows for an event (or all events when
// eventID is empty), ordered by registration time.
func (r *Repository) ExportRows(ctx context.Context, eventID string) ([]ExportRow, error) {
	query := exportSelect
	args := []any{}
	if eventID != "" {
		query += ` WHERE a.event_id = $1`
		args = append(args, eventID)
	}
	query += ` ORDER BY a.registered_at`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ExportRow
	for rows.Next() {
		row, err := scanExportRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// ExportRow returns the flat row for one attendance id, or nil.
func (r *Repository) ExportRow(ctx context.Context, attendanceID string) (*ExportRow, error) {
	row, err := scanExportRow(r.db.QueryRowContext(ctx, exportSelect+` WHERE a.id = $1`, attendanceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertExportRow materializes a flat row; replays are harmless.
func (r *Repository) UpsertExportRow(ctx context.Context, row ExportRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_export (attendance_id, event_name, event_date, event_period,
			student_name, national_id, carnet_code, email, faculty, program, method, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (attendance_id) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			event_date = EXCLUDED.event_date,
			event_period = EXCLUDED.event_period,
			student_name = EXCLUDED.student_name,
			national_id = EXCLUDED.national_id,
			carnet_code = EXCLUDED.carnet_code,
			email = EXCLUDED.email,
			faculty = EXCLUDED.faculty,
			program = EXCLUDED.program,
			method = EXCLUDED.method,
			registered_at = EXCLUDED.registered_at,
			materialized_at = NOW()
	`, row.AttendanceID, row.EventName, row.EventDate, row.EventPeriod,
		row.StudentName, row.NationalID, row.CarnetCode, row.Email, row.Faculty, row.Program,
		row.Method, row.RegisteredAt)
	return err
}

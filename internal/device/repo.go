package device

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Device is a physical scanning endpoint (ESP32 reader).
type Device struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Note      string    `json:"note"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists devices in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const deviceColumns = `id, code, name, location, note, active, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Location, &d.Note, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Insert writes a new device.
func (r *Repository) Insert(ctx context.Context, d Device) (Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (id, code, name, location, note, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, d.ID, d.Code, d.Name, d.Location, d.Note, d.Active)
	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return Device{}, err
	}
	return d, nil
}

// Get returns a device by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByCode returns a device by code, or nil when absent.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE code = $1`, code)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns devices, optionally filtered by active flag, sorted by name.
func (r *Repository) List(ctx context.Context, active *bool) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices`
	args := []any{}
	if active != nil {
		query += ` WHERE active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// Update rewrites the mutable fields of a device.
func (r *Repository) Update(ctx context.Context, d Device) (Device, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE devices
		SET code = $2, name = $3, location = $4, note = $5, active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, d.ID, d.Code, d.Name, d.Location, d.Note, d.Active)
	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return Device{}, err
	}
	return d, nil
}

// Delete removes a device. Returns false when the id does not exist.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

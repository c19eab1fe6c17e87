package area

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Area is an organizational department owning users and events.
type Area struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Color       string    `json:"color"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists areas in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const areaColumns = `id, name, description, code, color, active, created_at, updated_at`

func scanArea(row interface{ Scan(...any) error }) (Area, error) {
	var a Area
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Code, &a.Color, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Insert writes a new area.
func (r *Repository) Insert(ctx context.Context, a Area) (Area, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO areas (id, name, description, code, color, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, a.ID, a.Name, a.Description, a.Code, a.Color, a.Active)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Area{}, err
	}
	return a, nil
}

// Get returns an area by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Area, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas WHERE id = $1`, id)
	a, err := scanArea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByName returns an area by exact name, or nil when absent.
func (r *Repository) GetByName(ctx context.Context, name string) (*Area, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas WHERE name = $1`, name)
	a, err := scanArea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByCode returns an area by code, or nil when absent.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Area, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas WHERE code = $1`, code)
	a, err := scanArea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns areas, optionally filtered by active flag, sorted by name.
func (r *Repository) List(ctx context.Context, active *bool) ([]Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas`
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
	var res []Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// Update rewrites the mutable fields of an area.
func (r *Repository) Update(ctx context.Context, a Area) (Area, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE areas
		SET name = $2, description = $3, code = $4, color = $5, active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, a.ID, a.Name, a.Description, a.Code, a.Color, a.Active)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Area{}, err
	}
	return a, nil
}

// Delete removes an area. Returns false when the id does not exist.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM areas WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountUsers returns how many users reference the area.
func (r *Repository) CountUsers(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE area_id = $1`, id).Scan(&n)
	return n, err
}

// CountEvents returns how many events reference the area.
func (r *Repository) CountEvents(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE area_id = $1`, id).Scan(&n)
	return n, err
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"asistencia/internal/policy"
)

// User is a staff account.
type User struct {
	ID           string      `json:"id"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Cedula       string      `json:"cedula"`
	Position     string      `json:"position"`
	AreaID       string      `json:"area_id"`
	Handle       string      `json:"handle"`
	PasswordHash string      `json:"-"`
	Role         policy.Role `json:"role"`
	CreatedBy    *string     `json:"created_by,omitempty"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Repository persists staff accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, first_name, last_name, cedula, position, area_id, handle,
	password_hash, role, created_by, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Cedula, &u.Position, &u.AreaID,
		&u.Handle, &u.PasswordHash, &u.Role, &u.CreatedBy, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Insert writes a new staff account.
func (r *Repository) Insert(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, first_name, last_name, cedula, position, area_id, handle,
			password_hash, role, created_by, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at
	`, u.ID, u.FirstName, u.LastName, u.Cedula, u.Position, u.AreaID, u.Handle,
		u.PasswordHash, u.Role, u.CreatedBy, u.Active)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// Get returns a user by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByHandle returns an active user by login handle, or nil.
func (r *Repository) GetActiveByHandle(ctx context.Context, handle string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE handle = $1 AND active = TRUE`, handle)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users, or only those in areaID when it is non-empty,
// sorted by handle.
func (r *Repository) List(ctx context.Context, areaID string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if areaID != "" {
		query += ` WHERE area_id = $1`
		args = append(args, areaID)
	}
	query += ` ORDER BY handle`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// Update rewrites the mutable fields of a user.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, cedula = $4, position = $5, area_id = $6,
			handle = $7, password_hash = $8, role = $9, active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, u.ID, u.FirstName, u.LastName, u.Cedula, u.Position, u.AreaID,
		u.Handle, u.PasswordHash, u.Role, u.Active)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// Delete removes a user. Returns false when the id does not exist.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Student is a period-scoped enrollment record. The same person may have
// one record per academic period.
type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	IDType         string    `json:"id_type"`
	NationalID     string    `json:"national_id"`
	CarnetCode     string    `json:"carnet_code"`
	Email          string    `json:"email"`
	EnrollmentType string    `json:"enrollment_type"`
	Faculty        string    `json:"faculty"`
	Program        string    `json:"program"`
	Semester       string    `json:"semester"`
	District       string    `json:"district"`
	Period         string    `json:"period"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, id_type, national_id, carnet_code, email, enrollment_type,
	faculty, program, semester, district, period, active, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.IDType, &s.NationalID, &s.CarnetCode, &s.Email,
		&s.EnrollmentType, &s.Faculty, &s.Program, &s.Semester, &s.District, &s.Period,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Insert writes a new student record.
func (r *Repository) Insert(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, id_type, national_id, carnet_code, email,
			enrollment_type, faculty, program, semester, district, period, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`, s.ID, s.Name, s.IDType, s.NationalID, s.CarnetCode, s.Email,
		s.EnrollmentType, s.Faculty, s.Program, s.Semester, s.District, s.Period, s.Active)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return Student{}, err
	}
	return s, nil
}

// Get returns a student by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByCarnet returns the most recent active record for a carnet code.
func (r *Repository) GetActiveByCarnet(ctx context.Context, carnet string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE carnet_code = $1 AND active = TRUE
		ORDER BY period DESC
		LIMIT 1
	`, carnet)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByNationalID returns the most recent active record for a national id.
func (r *Repository) GetActiveByNationalID(ctx context.Context, nationalID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE national_id = $1 AND active = TRUE
		ORDER BY period DESC
		LIMIT 1
	`, nationalID)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns students matching the search term with pagination, plus
// the total count for the filter.
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Student, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := ``
	args := []any{}
	if search != "" {
		where = ` WHERE name ILIKE $1 OR carnet_code ILIKE $1 OR national_id ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + studentColumns + ` FROM students` + where +
		` ORDER BY name LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, s)
	}
	return res, total, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

// Update rewrites the mutable fields of a student record.
func (r *Repository) Update(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET name = $2, id_type = $3, national_id = $4, carnet_code = $5, email = $6,
			enrollment_type = $7, faculty = $8, program = $9, semester = $10,
			district = $11, period = $12, active = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, s.ID, s.Name, s.IDType, s.NationalID, s.CarnetCode, s.Email,
		s.EnrollmentType, s.Faculty, s.Program, s.Semester, s.District, s.Period, s.Active)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return Student{}, err
	}
	return s, nil
}

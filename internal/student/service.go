package student

import (
	"context"
	"strings"

	"asistencia/internal/apperr"
	"asistencia/internal/store"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, s Student) (Student, error)
	Get(ctx context.Context, id string) (*Student, error)
	GetActiveByCarnet(ctx context.Context, carnet string) (*Student, error)
	GetActiveByNationalID(ctx context.Context, nationalID string) (*Student, error)
	List(ctx context.Context, search string, limit, offset int) ([]Student, int, error)
	Update(ctx context.Context, s Student) (Student, error)
}

// Service applies student business rules.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// CreateInput carries new-student fields. Bulk sync from spreadsheets
// goes through the same path, one record at a time.
type CreateInput struct {
	Name           string `json:"name" binding:"required"`
	IDType         string `json:"id_type"`
	NationalID     string `json:"national_id" binding:"required"`
	CarnetCode     string `json:"carnet_code" binding:"required"`
	Email          string `json:"email" binding:"required"`
	EnrollmentType string `json:"enrollment_type"`
	Faculty        string `json:"faculty"`
	Program        string `json:"program"`
	Semester       string `json:"semester"`
	District       string `json:"district"`
	Period         string `json:"period" binding:"required"`
}

// Create registers a student record for a period. Uniqueness of
// (carnet, period) and (national id, period) comes from the store.
func (s *Service) Create(ctx context.Context, in CreateInput) (Student, error) {
	rec := Student{
		Name:           strings.TrimSpace(in.Name),
		IDType:         strings.TrimSpace(in.IDType),
		NationalID:     strings.TrimSpace(in.NationalID),
		CarnetCode:     strings.ToUpper(strings.TrimSpace(in.CarnetCode)),
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		EnrollmentType: strings.TrimSpace(in.EnrollmentType),
		Faculty:        strings.TrimSpace(in.Faculty),
		Program:        strings.TrimSpace(in.Program),
		Semester:       strings.TrimSpace(in.Semester),
		District:       strings.TrimSpace(in.District),
		Period:         strings.TrimSpace(in.Period),
		Active:         true,
	}
	if rec.Name == "" || rec.NationalID == "" || rec.CarnetCode == "" || rec.Period == "" {
		return Student{}, apperr.Validation("name, national_id, carnet_code and period are required")
	}
	if rec.IDType == "" {
		rec.IDType = "CC"
	}
	created, err := s.store.Insert(ctx, rec)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Student{}, apperr.Validation("a student with that carnet or national id already exists for this period")
		}
		return Student{}, apperr.Internal("could not create student", err)
	}
	return created, nil
}

// Get returns one student record.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Student{}, apperr.Internal("could not load student", err)
	}
	if rec == nil {
		return Student{}, apperr.NotFound("student not found")
	}
	return *rec, nil
}

// GetByCarnet returns the active record for a carnet code.
func (s *Service) GetByCarnet(ctx context.Context, carnet string) (Student, error) {
	rec, err := s.store.GetActiveByCarnet(ctx, strings.ToUpper(strings.TrimSpace(carnet)))
	if err != nil {
		return Student{}, apperr.Internal("could not load student", err)
	}
	if rec == nil {
		return Student{}, apperr.NotFound("student not found")
	}
	return *rec, nil
}

// List returns a page of students matching the search term.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]Student, int, error) {
	students, total, err := s.store.List(ctx, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("could not list students", err)
	}
	return students, total, nil
}

// UpdateInput carries optional student changes; nil fields stay untouched.
type UpdateInput struct {
	Name           *string `json:"name"`
	IDType         *string `json:"id_type"`
	NationalID     *string `json:"national_id"`
	CarnetCode     *string `json:"carnet_code"`
	Email          *string `json:"email"`
	EnrollmentType *string `json:"enrollment_type"`
	Faculty        *string `json:"faculty"`
	Program        *string `json:"program"`
	Semester       *string `json:"semester"`
	District       *string `json:"district"`
	Period         *string `json:"period"`
	Active         *bool   `json:"active"`
}

// Update applies partial changes to a student record.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Student, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if in.Name != nil {
		current.Name = strings.TrimSpace(*in.Name)
	}
	if in.IDType != nil {
		current.IDType = strings.TrimSpace(*in.IDType)
	}
	if in.NationalID != nil {
		current.NationalID = strings.TrimSpace(*in.NationalID)
	}
	if in.CarnetCode != nil {
		current.CarnetCode = strings.ToUpper(strings.TrimSpace(*in.CarnetCode))
	}
	if in.Email != nil {
		current.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.EnrollmentType != nil {
		current.EnrollmentType = strings.TrimSpace(*in.EnrollmentType)
	}
	if in.Faculty != nil {
		current.Faculty = strings.TrimSpace(*in.Faculty)
	}
	if in.Program != nil {
		current.Program = strings.TrimSpace(*in.Program)
	}
	if in.Semester != nil {
		current.Semester = strings.TrimSpace(*in.Semester)
	}
	if in.District != nil {
		current.District = strings.TrimSpace(*in.District)
	}
	if in.Period != nil {
		current.Period = strings.TrimSpace(*in.Period)
	}
	if in.Active != nil {
		current.Active = *in.Active
	}
	if current.Name == "" || current.NationalID == "" || current.CarnetCode == "" || current.Period == "" {
		return Student{}, apperr.Validation("name, national_id, carnet_code and period cannot be empty")
	}
	updated, err := s.store.Update(ctx, current)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Student{}, apperr.Validation("a student with that carnet or national id already exists for this period")
		}
		return Student{}, apperr.Internal("could not update student", err)
	}
	return updated, nil
}

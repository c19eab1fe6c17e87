package device

import (
	"context"
	"strings"

	"asistencia/internal/apperr"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, d Device) (Device, error)
	Get(ctx context.Context, id string) (*Device, error)
	GetByCode(ctx context.Context, code string) (*Device, error)
	List(ctx context.Context, active *bool) ([]Device, error)
	Update(ctx context.Context, d Device) (Device, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Service applies device business rules.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateInput carries new-device fields.
type CreateInput struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
	Note     string `json:"note"`
}

// Create registers a new device with a unique code.
func (s *Service) Create(ctx context.Context, in CreateInput) (Device, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return Device{}, apperr.Validation("code and name are required")
	}
	if existing, err := s.store.GetByCode(ctx, code); err != nil {
		return Device{}, apperr.Internal("could not check device code", err)
	} else if existing != nil {
		return Device{}, apperr.Validation("device code already exists")
	}
	created, err := s.store.Insert(ctx, Device{
		Code:     code,
		Name:     name,
		Location: strings.TrimSpace(in.Location),
		Note:     strings.TrimSpace(in.Note),
		Active:   true,
	})
	if err != nil {
		return Device{}, apperr.Internal("could not create device", err)
	}
	return created, nil
}

// Get returns one device.
func (s *Service) Get(ctx context.Context, id string) (Device, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return Device{}, apperr.Internal("could not load device", err)
	}
	if d == nil {
		return Device{}, apperr.NotFound("device not found")
	}
	return *d, nil
}

// List returns devices, optionally filtered by active flag.
func (s *Service) List(ctx context.Context, active *bool) ([]Device, error) {
	devices, err := s.store.List(ctx, active)
	if err != nil {
		return nil, apperr.Internal("could not list devices", err)
	}
	return devices, nil
}

// UpdateInput carries optional device changes; nil fields stay untouched.
type UpdateInput struct {
	Code     *string `json:"code"`
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Note     *string `json:"note"`
	Active   *bool   `json:"active"`
}

// Update applies partial changes keeping the code unique.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Device, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Device{}, err
	}
	if in.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Code))
		if code == "" {
			return Device{}, apperr.Validation("code cannot be empty")
		}
		if code != current.Code {
			if existing, err := s.store.GetByCode(ctx, code); err != nil {
				return Device{}, apperr.Internal("could not check device code", err)
			} else if existing != nil && existing.ID != id {
				return Device{}, apperr.Validation("device code already exists")
			}
		}
		current.Code = code
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Device{}, apperr.Validation("name cannot be empty")
		}
		current.Name = name
	}
	if in.Location != nil {
		current.Location = strings.TrimSpace(*in.Location)
	}
	if in.Note != nil {
		current.Note = strings.TrimSpace(*in.Note)
	}
	if in.Active != nil {
		current.Active = *in.Active
	}
	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return Device{}, apperr.Internal("could not update device", err)
	}
	return updated, nil
}

// Delete removes a device.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("could not delete device", err)
	}
	if !deleted {
		return apperr.NotFound("device not found")
	}
	return nil
}

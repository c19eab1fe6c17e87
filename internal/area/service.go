package area

import (
	"context"
	"fmt"
	"strings"

	"asistencia/internal/apperr"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, a Area) (Area, error)
	Get(ctx context.Context, id string) (*Area, error)
	GetByName(ctx context.Context, name string) (*Area, error)
	GetByCode(ctx context.Context, code string) (*Area, error)
	List(ctx context.Context, active *bool) ([]Area, error)
	Update(ctx context.Context, a Area) (Area, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountUsers(ctx context.Context, id string) (int, error)
	CountEvents(ctx context.Context, id string) (int, error)
}

// Service applies area business rules.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateInput carries new-area fields.
type CreateInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Code        string `json:"code" binding:"required"`
	Color       string `json:"color"`
}

// Create registers a new area with unique name and code.
func (s *Service) Create(ctx context.Context, in CreateInput) (Area, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Name == "" || in.Code == "" {
		return Area{}, apperr.Validation("name and code are required")
	}
	if existing, err := s.store.GetByName(ctx, in.Name); err != nil {
		return Area{}, apperr.Internal("could not check area name", err)
	} else if existing != nil {
		return Area{}, apperr.Validation("an area with that name already exists")
	}
	if existing, err := s.store.GetByCode(ctx, in.Code); err != nil {
		return Area{}, apperr.Internal("could not check area code", err)
	} else if existing != nil {
		return Area{}, apperr.Validation("an area with that code already exists")
	}
	color := in.Color
	if color == "" {
		color = "#4CAF50"
	}
	created, err := s.store.Insert(ctx, Area{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Code:        in.Code,
		Color:       color,
		Active:      true,
	})
	if err != nil {
		return Area{}, apperr.Internal("could not create area", err)
	}
	return created, nil
}

// Get returns one area.
func (s *Service) Get(ctx context.Context, id string) (Area, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Area{}, apperr.Internal("could not load area", err)
	}
	if a == nil {
		return Area{}, apperr.NotFound("area not found")
	}
	return *a, nil
}

// List returns areas, optionally filtered by active flag.
func (s *Service) List(ctx context.Context, active *bool) ([]Area, error) {
	areas, err := s.store.List(ctx, active)
	if err != nil {
		return nil, apperr.Internal("could not list areas", err)
	}
	return areas, nil
}

// UpdateInput carries optional area changes; nil fields stay untouched.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Color       *string `json:"color"`
	Active      *bool   `json:"active"`
}

// Update applies partial changes keeping name and code unique.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Area, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Area{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Area{}, apperr.Validation("name cannot be empty")
		}
		if name != current.Name {
			if existing, err := s.store.GetByName(ctx, name); err != nil {
				return Area{}, apperr.Internal("could not check area name", err)
			} else if existing != nil && existing.ID != id {
				return Area{}, apperr.Validation("an area with that name already exists")
			}
		}
		current.Name = name
	}
	if in.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Code))
		if code == "" {
			return Area{}, apperr.Validation("code cannot be empty")
		}
		if code != current.Code {
			if existing, err := s.store.GetByCode(ctx, code); err != nil {
				return Area{}, apperr.Internal("could not check area code", err)
			} else if existing != nil && existing.ID != id {
				return Area{}, apperr.Validation("an area with that code already exists")
			}
		}
		current.Code = code
	}
	if in.Description != nil {
		current.Description = strings.TrimSpace(*in.Description)
	}
	if in.Color != nil && *in.Color != "" {
		current.Color = *in.Color
	}
	if in.Active != nil {
		current.Active = *in.Active
	}
	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return Area{}, apperr.Internal("could not update area", err)
	}
	return updated, nil
}

// Delete removes an area that no user or event references.
func (s *Service) Delete(ctx context.Context, id string) error {
	if users, err := s.store.CountUsers(ctx, id); err != nil {
		return apperr.Internal("could not check area references", err)
	} else if users > 0 {
		return apperr.Validation(fmt.Sprintf("area has %d associated user(s) and cannot be deleted", users))
	}
	if events, err := s.store.CountEvents(ctx, id); err != nil {
		return apperr.Internal("could not check area references", err)
	} else if events > 0 {
		return apperr.Validation(fmt.Sprintf("area has %d associated event(s) and cannot be deleted", events))
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("could not delete area", err)
	}
	if !deleted {
		return apperr.NotFound("area not found")
	}
	return nil
}

package user

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"asistencia/internal/apperr"
	"asistencia/internal/policy"
	"asistencia/internal/store"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id string) (*User, error)
	GetActiveByHandle(ctx context.Context, handle string) (*User, error)
	List(ctx context.Context, areaID string) ([]User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Service applies staff-account rules under the access policy.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Authenticate verifies handle and password for login.
func (s *Service) Authenticate(ctx context.Context, handle, password string) (User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return User{}, apperr.Validation("handle and password are required")
	}
	u, err := s.store.GetActiveByHandle(ctx, handle)
	if err != nil {
		return User{}, apperr.Internal("could not load user", err)
	}
	if u == nil {
		return User{}, apperr.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.Unauthorized("invalid credentials")
	}
	return *u, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, apperr.Internal("could not load user", err)
	}
	if u == nil {
		return User{}, apperr.NotFound("user not found")
	}
	return *u, nil
}

// List returns the users visible to the actor: everyone for
// administrators, the actor's own area for coordinators.
func (s *Service) List(ctx context.Context, actor policy.Actor) ([]User, error) {
	if err := policy.CanListUsers(actor); err != nil {
		return nil, err
	}
	areaID := ""
	if actor.Role == policy.RoleCoordinator {
		areaID = actor.AreaID
	}
	users, err := s.store.List(ctx, areaID)
	if err != nil {
		return nil, apperr.Internal("could not list users", err)
	}
	return users, nil
}

// CreateInput carries new-user fields.
type CreateInput struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Cedula    string `json:"cedula" binding:"required"`
	Position  string `json:"position"`
	AreaID    string `json:"area_id" binding:"required"`
	Handle    string `json:"handle" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Role      string `json:"role"`
}

// Create registers a staff account under the actor's policy.
func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (User, error) {
	role := policy.Role(strings.TrimSpace(in.Role))
	if role == "" {
		role = policy.RoleProfessional
	}
	if !role.Valid() {
		return User{}, apperr.Validation("unknown role")
	}
	if err := policy.CanCreateUser(actor, role, in.AreaID); err != nil {
		return User{}, err
	}
	handle := strings.TrimSpace(in.Handle)
	if handle == "" || in.Password == "" {
		return User{}, apperr.Validation("handle and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperr.Internal("could not hash password", err)
	}
	creator := actor.UserID
	created, err := s.store.Insert(ctx, User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Cedula:       strings.TrimSpace(in.Cedula),
		Position:     strings.TrimSpace(in.Position),
		AreaID:       in.AreaID,
		Handle:       handle,
		PasswordHash: string(hash),
		Role:         role,
		CreatedBy:    &creator,
		Active:       true,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, apperr.Validation("a user with that handle or cedula already exists")
		}
		return User{}, apperr.Internal("could not create user", err)
	}
	return created, nil
}

// UpdateInput carries optional user changes; nil fields stay untouched.
type UpdateInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Cedula    *string `json:"cedula"`
	Position  *string `json:"position"`
	AreaID    *string `json:"area_id"`
	Handle    *string `json:"handle"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	Active    *bool   `json:"active"`
}

// Update applies partial changes under the actor's policy.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id string, in UpdateInput) (User, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	newRole := current.Role
	if in.Role != nil {
		newRole = policy.Role(strings.TrimSpace(*in.Role))
		if !newRole.Valid() {
			return User{}, apperr.Validation("unknown role")
		}
	}
	newAreaID := current.AreaID
	if in.AreaID != nil {
		newAreaID = *in.AreaID
	}
	target := policy.UserTarget{Role: current.Role, AreaID: current.AreaID}
	if err := policy.CanUpdateUser(actor, target, newRole, newAreaID); err != nil {
		return User{}, err
	}

	current.Role = newRole
	current.AreaID = newAreaID
	if in.FirstName != nil {
		current.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		current.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Cedula != nil {
		current.Cedula = strings.TrimSpace(*in.Cedula)
	}
	if in.Position != nil {
		current.Position = strings.TrimSpace(*in.Position)
	}
	if in.Handle != nil {
		handle := strings.TrimSpace(*in.Handle)
		if handle == "" {
			return User{}, apperr.Validation("handle cannot be empty")
		}
		current.Handle = handle
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, apperr.Internal("could not hash password", err)
		}
		current.PasswordHash = string(hash)
	}
	if in.Active != nil {
		current.Active = *in.Active
	}

	updated, err := s.store.Update(ctx, current)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, apperr.Validation("a user with that handle or cedula already exists")
		}
		return User{}, apperr.Internal("could not update user", err)
	}
	return updated, nil
}

// Delete removes a user; administrators only.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := policy.CanDeleteUser(actor); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("could not delete user", err)
	}
	if !deleted {
		return apperr.NotFound("user not found")
	}
	return nil
}

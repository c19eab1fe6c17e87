// Package policy decides what each staff role may see and change.
// Every rule is an exhaustive switch over the three roles so a new role
// cannot silently fall through to a permissive default.
package policy

import "asistencia/internal/apperr"

// Role is a staff account role.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleCoordinator   Role = "coordinator"
	RoleProfessional  Role = "professional"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleCoordinator, RoleProfessional:
		return true
	}
	return false
}

// Actor is the verified identity triple attached to every authenticated call.
type Actor struct {
	UserID string
	Role   Role
	AreaID string
}

// EventScope is the visibility predicate for event listings.
type EventScope struct {
	// All means no restriction (administrator).
	All bool
	// CreatedBy restricts to events created by this user (professional).
	CreatedBy string
	// AreaID restricts to events in this area (coordinator).
	AreaID string
}

// ScopeForEvents returns the listing predicate for the actor's role.
func ScopeForEvents(actor Actor) EventScope {
	switch actor.Role {
	case RoleAdministrator:
		return EventScope{All: true}
	case RoleCoordinator:
		return EventScope{AreaID: actor.AreaID}
	default:
		return EventScope{CreatedBy: actor.UserID}
	}
}

// EventTarget is the slice of an event the policy needs for decisions.
type EventTarget struct {
	CreatedBy string
	AreaID    string
}

// CanMutateEvent authorizes update or delete of a single event.
func CanMutateEvent(actor Actor, target EventTarget) error {
	switch actor.Role {
	case RoleAdministrator:
		return nil
	case RoleCoordinator:
		if target.AreaID != actor.AreaID {
			return apperr.Forbidden("coordinators may only modify events in their own area")
		}
		return nil
	case RoleProfessional:
		if target.CreatedBy != actor.UserID {
			return apperr.Forbidden("professionals may only modify events they created")
		}
		return nil
	}
	return apperr.Forbidden("unknown role")
}

// CanChangeEventArea authorizes moving an event to another area.
// This is administrator-only regardless of who owns the event.
func CanChangeEventArea(actor Actor) error {
	if actor.Role != RoleAdministrator {
		return apperr.Forbidden("only administrators may change an event's area")
	}
	return nil
}

// UserTarget is the slice of a user record the policy needs for decisions.
type UserTarget struct {
	Role   Role
	AreaID string
}

// CanListUsers authorizes access to the user collection.
func CanListUsers(actor Actor) error {
	switch actor.Role {
	case RoleAdministrator, RoleCoordinator:
		return nil
	}
	return apperr.Forbidden("user management requires administrator or coordinator role")
}

// CanCreateUser authorizes creating a user with the given role and area.
func CanCreateUser(actor Actor, newRole Role, newAreaID string) error {
	switch actor.Role {
	case RoleAdministrator:
		return nil
	case RoleCoordinator:
		if newRole != RoleProfessional {
			return apperr.Forbidden("coordinators may only create professional accounts")
		}
		if newAreaID != actor.AreaID {
			return apperr.Forbidden("coordinators may only create users in their own area")
		}
		return nil
	}
	return apperr.Forbidden("user management requires administrator or coordinator role")
}

// CanUpdateUser authorizes changing target into (newRole, newAreaID).
// Pass the current values when a field is not being changed.
func CanUpdateUser(actor Actor, target UserTarget, newRole Role, newAreaID string) error {
	switch actor.Role {
	case RoleAdministrator:
		return nil
	case RoleCoordinator:
		if target.Role != RoleProfessional || target.AreaID != actor.AreaID {
			return apperr.Forbidden("coordinators may only manage professionals in their own area")
		}
		if newRole != RoleProfessional {
			return apperr.Forbidden("coordinators may not change a user's role")
		}
		if newAreaID != actor.AreaID {
			return apperr.Forbidden("coordinators may not move users to another area")
		}
		return nil
	}
	return apperr.Forbidden("user management requires administrator or coordinator role")
}

// CanDeleteUser authorizes deleting a user.
func CanDeleteUser(actor Actor) error {
	if actor.Role != RoleAdministrator {
		return apperr.Forbidden("only administrators may delete users")
	}
	return nil
}

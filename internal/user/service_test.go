package user

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"asistencia/internal/apperr"
	"asistencia/internal/policy"
)

type fakeStore struct {
	users  map[string]User
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]User{}}
}

func (f *fakeStore) Insert(_ context.Context, u User) (User, error) {
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*User, error) {
	if u, ok := f.users[id]; ok {
		copied := u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetActiveByHandle(_ context.Context, handle string) (*User, error) {
	for _, u := range f.users {
		if u.Handle == handle && u.Active {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context, areaID string) ([]User, error) {
	var out []User
	for _, u := range f.users {
		if areaID != "" && u.AreaID != areaID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, u User) (User, error) {
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.users[id]; !ok {
		return false, nil
	}
	delete(f.users, id)
	return true, nil
}

func seedUser(t *testing.T, store *fakeStore, handle, password string, role policy.Role, areaID string, active bool) User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	u, err := store.Insert(context.Background(), User{
		FirstName:    "Ana",
		LastName:     "Gomez",
		Handle:       handle,
		PasswordHash: string(hash),
		Role:         role,
		AreaID:       areaID,
		Active:       active,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return u
}

func TestAuthenticate(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "ana", "s3cret", policy.RoleCoordinator, "a1", true)
	svc := NewService(store)

	u, err := svc.Authenticate(context.Background(), "ana", "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Handle != "ana" {
		t.Errorf("handle = %q", u.Handle)
	}

	if _, err := svc.Authenticate(context.Background(), "ana", "wrong"); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("wrong password should be unauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody", "s3cret"); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("unknown handle should be unauthorized, got %v", err)
	}
}

func TestAuthenticateIgnoresInactiveAccounts(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "ana", "s3cret", policy.RoleCoordinator, "a1", false)
	svc := NewService(store)

	if _, err := svc.Authenticate(context.Background(), "ana", "s3cret"); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("inactive account should not authenticate, got %v", err)
	}
}

func TestCreateHashesPasswordAndDefaultsRole(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	admin := policy.Actor{UserID: "root", Role: policy.RoleAdministrator}

	created, err := svc.Create(context.Background(), admin, CreateInput{
		FirstName: "Ana", LastName: "Gomez", Cedula: "123",
		AreaID: "a1", Handle: "ana", Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Role != policy.RoleProfessional {
		t.Errorf("role should default to professional, got %s", created.Role)
	}
	if created.PasswordHash == "s3cret" || created.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret")) != nil {
		t.Error("stored hash should verify the original password")
	}
	if created.CreatedBy == nil || *created.CreatedBy != "root" {
		t.Error("creator should be recorded")
	}
}

func TestCreateEnforcesCoordinatorPolicy(t *testing.T) {
	svc := NewService(newFakeStore())
	coord := policy.Actor{UserID: "c1", Role: policy.RoleCoordinator, AreaID: "a1"}

	_, err := svc.Create(context.Background(), coord, CreateInput{
		FirstName: "Ana", LastName: "Gomez", Cedula: "123",
		AreaID: "a1", Handle: "ana", Password: "s3cret",
		Role: string(policy.RoleCoordinator),
	})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("coordinator creating a coordinator should be forbidden, got %v", err)
	}

	_, err = svc.Create(context.Background(), coord, CreateInput{
		FirstName: "Ana", LastName: "Gomez", Cedula: "123",
		AreaID: "a2", Handle: "ana", Password: "s3cret",
	})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("cross-area create should be forbidden, got %v", err)
	}
}

func TestListScopesCoordinatorsToOwnArea(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "ana", "x", policy.RoleProfessional, "a1", true)
	seedUser(t, store, "beto", "x", policy.RoleProfessional, "a2", true)
	svc := NewService(store)

	users, err := svc.List(context.Background(), policy.Actor{UserID: "c1", Role: policy.RoleCoordinator, AreaID: "a1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].AreaID != "a1" {
		t.Errorf("coordinator listing should be area-scoped, got %+v", users)
	}

	users, err = svc.List(context.Background(), policy.Actor{UserID: "root", Role: policy.RoleAdministrator})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("administrator should see everyone, got %d", len(users))
	}

	if _, err := svc.List(context.Background(), policy.Actor{UserID: "p1", Role: policy.RoleProfessional}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("professional listing users should be forbidden, got %v", err)
	}
}

func TestDeleteRequiresAdministrator(t *testing.T) {
	store := newFakeStore()
	target := seedUser(t, store, "ana", "x", policy.RoleProfessional, "a1", true)
	svc := NewService(store)

	if err := svc.Delete(context.Background(), policy.Actor{Role: policy.RoleCoordinator, AreaID: "a1"}, target.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("coordinator delete should be forbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), policy.Actor{Role: policy.RoleAdministrator}, target.ID); err != nil {
		t.Errorf("administrator delete failed: %v", err)
	}
}

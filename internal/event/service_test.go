package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"asistencia/internal/apperr"
	"asistencia/internal/area"
	"asistencia/internal/device"
	"asistencia/internal/policy"
)

func TestDeriveSchedule(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)

	sched, err := DeriveSchedule("2026-03-10", "08:00", "17:30", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)
	wantEnd := time.Date(2026, 3, 10, 17, 30, 0, 0, loc)
	if !sched.StartsAt.Equal(wantStart) {
		t.Errorf("starts_at = %v, want %v", sched.StartsAt, wantStart)
	}
	if !sched.EndsAt.Equal(wantEnd) {
		t.Errorf("ends_at = %v, want %v", sched.EndsAt, wantEnd)
	}
}

func TestDeriveScheduleMidnightRollover(t *testing.T) {
	loc := time.UTC
	sched, err := DeriveSchedule("2026-03-10", "22:00", "02:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantEnd := time.Date(2026, 3, 11, 2, 0, 0, 0, loc)
	if !sched.EndsAt.Equal(wantEnd) {
		t.Errorf("ends_at = %v, want next-day %v", sched.EndsAt, wantEnd)
	}
	if !sched.EndsAt.After(sched.StartsAt) {
		t.Error("end must always land after start")
	}
}

func TestDeriveScheduleRejectsBadInput(t *testing.T) {
	cases := []struct{ date, start, end string }{
		{"10-03-2026", "08:00", "10:00"},
		{"2026-03-10", "8am", "10:00"},
		{"2026-03-10", "08:00", "25:99"},
	}
	for _, tc := range cases {
		if _, err := DeriveSchedule(tc.date, tc.start, tc.end, time.UTC); err == nil {
			t.Errorf("expected validation error for %v", tc)
		} else if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("expected validation kind for %v, got %v", tc, apperr.KindOf(err))
		}
	}
}

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	events       map[string]Event
	finalizeErr  error
	finalizeRuns int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]Event{}}
}

func (f *fakeStore) Insert(_ context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = "evt-1"
	}
	f.events[e.ID] = e
	return e, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Event, error) {
	if e, ok := f.events[id]; ok {
		copied := e
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]Event, error) {
	var out []Event
	for _, e := range f.events {
		if !filter.ScopeAll {
			if filter.ScopeCreatedBy != "" && e.CreatedBy != filter.ScopeCreatedBy {
				continue
			}
			if filter.ScopeAreaID != "" && e.AreaID != filter.ScopeAreaID {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, e Event) (Event, error) {
	f.events[e.ID] = e
	return e, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.events[id]; !ok {
		return false, nil
	}
	delete(f.events, id)
	return true, nil
}

func (f *fakeStore) FinalizeDue(_ context.Context, now time.Time) (int64, error) {
	f.finalizeRuns++
	if f.finalizeErr != nil {
		return 0, f.finalizeErr
	}
	var n int64
	for id, e := range f.events {
		if !e.Finalized && e.EndsAt.Before(now) {
			e.Finalized = true
			e.Active = false
			f.events[id] = e
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetActiveForDevice(_ context.Context, deviceID string) (*Event, error) {
	for _, e := range f.events {
		if e.Device != nil && e.Device.ID == deviceID && e.Active && !e.Finalized {
			copied := e
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertPhoto(_ context.Context, eventID string, p Photo) (Photo, error) {
	p.ID = "photo-1"
	e := f.events[eventID]
	e.Photos = append(e.Photos, p)
	f.events[eventID] = e
	return p, nil
}

func (f *fakeStore) ListPhotos(_ context.Context, eventID string) ([]Photo, error) {
	return f.events[eventID].Photos, nil
}

func (f *fakeStore) DeletePhoto(_ context.Context, eventID, photoID string) (bool, error) {
	e := f.events[eventID]
	for i, p := range e.Photos {
		if p.ID == photoID {
			e.Photos = append(e.Photos[:i], e.Photos[i+1:]...)
			f.events[eventID] = e
			return true, nil
		}
	}
	return false, nil
}

type fakeDevices struct {
	byID   map[string]device.Device
	byCode map[string]device.Device
}

func (f *fakeDevices) Get(_ context.Context, id string) (*device.Device, error) {
	if d, ok := f.byID[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (f *fakeDevices) GetByCode(_ context.Context, code string) (*device.Device, error) {
	if d, ok := f.byCode[code]; ok {
		return &d, nil
	}
	return nil, nil
}

type fakeAreas struct{ ids map[string]bool }

func (f *fakeAreas) Get(_ context.Context, id string) (*area.Area, error) {
	if f.ids[id] {
		return &area.Area{ID: id, Name: "Area " + id}, nil
	}
	return nil, nil
}

func newTestService(store Store) *Service {
	devices := &fakeDevices{
		byID:   map[string]device.Device{"dev-1": {ID: "dev-1", Code: "ESP01", Name: "Entrance", Active: true}},
		byCode: map[string]device.Device{"ESP01": {ID: "dev-1", Code: "ESP01", Name: "Entrance", Active: true}},
	}
	areas := &fakeAreas{ids: map[string]bool{"a1": true, "a2": true}}
	return NewService(store, devices, areas, nil, 0, time.UTC)
}

func TestFinalizeDueEventsIdempotent(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	store.events["past"] = Event{ID: "past", EndsAt: now.Add(-time.Hour), Active: true}
	store.events["future"] = Event{ID: "future", EndsAt: now.Add(time.Hour), Active: true}

	svc := newTestService(store)

	count, err := svc.FinalizeDueEvents(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("first sweep finalized %d, want 1", count)
	}
	if !store.events["past"].Finalized || store.events["past"].Active {
		t.Error("overdue event should be finalized and inactive")
	}
	if store.events["future"].Finalized {
		t.Error("future event must not be finalized")
	}

	count, err = svc.FinalizeDueEvents(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep finalized %d, want 0", count)
	}
}

func TestListRunsSweepFirst(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	store.events["past"] = Event{ID: "past", AreaID: "a1", CreatedBy: "u1", EndsAt: now.Add(-time.Minute), Active: true}

	svc := newTestService(store)
	admin := policy.Actor{UserID: "u1", Role: policy.RoleAdministrator}

	events, err := svc.List(context.Background(), admin, Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.finalizeRuns == 0 {
		t.Error("listing should run the finalization sweep first")
	}
	if len(events) != 1 || !events[0].Finalized {
		t.Errorf("listing should reflect the sweep, got %+v", events)
	}
}

func TestListSurvivesSweepFailure(t *testing.T) {
	store := newFakeStore()
	store.finalizeErr = errors.New("db down")
	store.events["e1"] = Event{ID: "e1", AreaID: "a1", CreatedBy: "u1", EndsAt: time.Now().Add(time.Hour), Active: true}

	svc := newTestService(store)
	admin := policy.Actor{UserID: "u1", Role: policy.RoleAdministrator}

	events, err := svc.List(context.Background(), admin, Filters{})
	if err != nil {
		t.Fatalf("a sweep failure must not fail the listing: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestCreateDeniesCrossAreaForNonAdmins(t *testing.T) {
	svc := newTestService(newFakeStore())
	coord := policy.Actor{UserID: "u2", Role: policy.RoleCoordinator, AreaID: "a1"}

	_, err := svc.Create(context.Background(), coord, CreateInput{
		Name:      "Job fair",
		Date:      "2026-03-10",
		StartTime: "08:00",
		EndTime:   "12:00",
		Place:     "Auditorium",
		Period:    "2026-1",
		AreaID:    "a2",
	})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("cross-area create by coordinator should be forbidden, got %v", err)
	}
}

func TestUpdateFinalizedToggleIsAdminOnly(t *testing.T) {
	store := newFakeStore()
	store.events["e1"] = Event{
		ID: "e1", Name: "Job fair", AreaID: "a1", CreatedBy: "u2",
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "08:00", EndTime: "12:00",
		Active: true, Finalized: true,
	}
	svc := newTestService(store)

	reopen := false
	coord := policy.Actor{UserID: "u9", Role: policy.RoleCoordinator, AreaID: "a1"}
	if _, err := svc.Update(context.Background(), coord, "e1", UpdateInput{Finalized: &reopen}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("coordinator toggling finalized should be forbidden, got %v", err)
	}

	admin := policy.Actor{UserID: "u1", Role: policy.RoleAdministrator}
	updated, err := svc.Update(context.Background(), admin, "e1", UpdateInput{Finalized: &reopen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Finalized {
		t.Error("administrator should be able to reopen a finalized event")
	}
}

func TestActiveEventForDevice(t *testing.T) {
	store := newFakeStore()
	store.events["e1"] = Event{
		ID: "e1", Name: "Job fair", Place: "Auditorium",
		Device: &DeviceRef{ID: "dev-1", Code: "ESP01"},
		Active: true, Finalized: false,
		EndsAt: time.Now().Add(time.Hour),
	}
	svc := newTestService(store)

	summary, err := svc.ActiveEventForDevice(context.Background(), " esp01 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.EventID != "e1" {
		t.Errorf("got event %s, want e1", summary.EventID)
	}

	// Finalized events stop answering the poll.
	e := store.events["e1"]
	e.Finalized = true
	store.events["e1"] = e
	if _, err := svc.ActiveEventForDevice(context.Background(), "ESP01"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("finalized event should yield not found, got %v", err)
	}

	if _, err := svc.ActiveEventForDevice(context.Background(), ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty device code should be a validation error, got %v", err)
	}
}

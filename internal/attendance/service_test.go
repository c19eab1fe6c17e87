package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"asistencia/internal/apperr"
	"asistencia/internal/device"
	"asistencia/internal/event"
	"asistencia/internal/policy"
	"asistencia/internal/queue"
	"asistencia/internal/student"
)

type fakeStore struct {
	rows      map[string]Attendance // key: eventID+"|"+studentID
	insertErr error
	inserted  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]Attendance{}}
}

func pairKey(eventID, studentID string) string { return eventID + "|" + studentID }

func (f *fakeStore) Insert(_ context.Context, a Attendance) (Attendance, error) {
	if f.insertErr != nil {
		return Attendance{}, f.insertErr
	}
	key := pairKey(a.EventID, a.StudentID)
	if _, exists := f.rows[key]; exists {
		return Attendance{}, &pgconn.PgError{Code: "23505"}
	}
	a.ID = "att-1"
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = time.Now().UTC()
	}
	f.rows[key] = a
	f.inserted++
	return a, nil
}

func (f *fakeStore) GetForPair(_ context.Context, eventID, studentID string) (*Attendance, error) {
	if a, ok := f.rows[pairKey(eventID, studentID)]; ok {
		copied := a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) ListByEvent(_ context.Context, eventID string) ([]Record, error) {
	var out []Record
	for _, a := range f.rows {
		if a.EventID == eventID {
			out = append(out, Record{Attendance: a})
		}
	}
	return out, nil
}

func (f *fakeStore) ListByStudent(_ context.Context, studentID string) ([]EventRecord, error) {
	var out []EventRecord
	for _, a := range f.rows {
		if a.StudentID == studentID {
			out = append(out, EventRecord{Attendance: a})
		}
	}
	return out, nil
}

func (f *fakeStore) HourlyStats(_ context.Context, eventID string) (int, []HourCount, error) {
	total := 0
	for _, a := range f.rows {
		if a.EventID == eventID {
			total++
		}
	}
	return total, nil, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	for key, a := range f.rows {
		if a.ID == id {
			delete(f.rows, key)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ExportRows(_ context.Context, _ string) ([]ExportRow, error) {
	return nil, nil
}

type fakeEvents struct {
	events   map[string]event.Event
	byDevice map[string]event.Event
}

func (f *fakeEvents) Get(_ context.Context, id string) (*event.Event, error) {
	if e, ok := f.events[id]; ok {
		copied := e
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeEvents) GetActiveForDevice(_ context.Context, deviceID string) (*event.Event, error) {
	if e, ok := f.byDevice[deviceID]; ok {
		copied := e
		return &copied, nil
	}
	return nil, nil
}

type fakeDevices struct{ byCode map[string]device.Device }

func (f *fakeDevices) GetByCode(_ context.Context, code string) (*device.Device, error) {
	if d, ok := f.byCode[code]; ok {
		copied := d
		return &copied, nil
	}
	return nil, nil
}

type fakeStudents struct {
	byCarnet   map[string]student.Student
	byDocument map[string]student.Student
}

func (f *fakeStudents) GetActiveByCarnet(_ context.Context, carnet string) (*student.Student, error) {
	if s, ok := f.byCarnet[carnet]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStudents) GetActiveByNationalID(_ context.Context, nationalID string) (*student.Student, error) {
	if s, ok := f.byDocument[nationalID]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func fixtureRegistrar(store Store, q queue.Queue) *Service {
	evt := event.Event{
		ID:   "evt-1",
		Name: "Job fair",
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	events := &fakeEvents{
		events:   map[string]event.Event{"evt-1": evt},
		byDevice: map[string]event.Event{"dev-1": evt},
	}
	devices := &fakeDevices{byCode: map[string]device.Device{
		"ESP01": {ID: "dev-1", Code: "ESP01", Active: true},
		"ESP02": {ID: "dev-2", Code: "ESP02", Active: true},
		"ESP99": {ID: "dev-99", Code: "ESP99", Active: false},
	}}
	maria := student.Student{ID: "stu-1", Name: "Maria Lopez", CarnetCode: "CARNET-9", NationalID: "1002003004", Email: "maria@example.edu"}
	students := &fakeStudents{
		byCarnet:   map[string]student.Student{"CARNET-9": maria},
		byDocument: map[string]student.Student{"1002003004": maria},
	}
	return NewService(store, events, devices, students, q)
}

func TestRegisterFromDevice(t *testing.T) {
	store := newFakeStore()
	q := queue.NewInMemory(4)
	svc := fixtureRegistrar(store, q)

	result, err := svc.RegisterFromDevice(context.Background(), " carnet-9 ", "esp01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attendance.Method != MethodDevice {
		t.Errorf("method = %s, want %s", result.Attendance.Method, MethodDevice)
	}
	if result.Attendance.ScannedCode != "CARNET-9" {
		t.Errorf("scanned code should be uppercased, got %q", result.Attendance.ScannedCode)
	}
	if result.Student.Name != "Maria Lopez" || result.Event.ID != "evt-1" {
		t.Errorf("result summaries wrong: %+v", result)
	}
	if result.Attendance.DeviceID == nil || *result.Attendance.DeviceID != "dev-1" {
		t.Error("device id should be recorded on the device path")
	}

	// The registration fans out to the export queue.
	msgs, _ := q.Consume(context.Background())
	select {
	case msg := <-msgs:
		if msg.Type != queue.TypeAttendance || string(msg.Body) != result.Attendance.ID {
			t.Errorf("queue message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Error("expected an export message on the queue")
	}
}

func TestRegisterFromDeviceNoActiveEvent(t *testing.T) {
	svc := fixtureRegistrar(newFakeStore(), nil)

	_, err := svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP02")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "no active event for this device" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRegisterFromDeviceInactiveDevice(t *testing.T) {
	svc := fixtureRegistrar(newFakeStore(), nil)
	if _, err := svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP99"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("inactive device should be rejected, got %v", err)
	}
}

func TestRegisterFromDeviceUnknownStudentEchoesCode(t *testing.T) {
	svc := fixtureRegistrar(newFakeStore(), nil)
	_, err := svc.RegisterFromDevice(context.Background(), "nope-1", "ESP01")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "student not found: NOPE-1" {
		t.Errorf("the scanned code should be echoed, got %q", err.Error())
	}
}

func TestRegisterDuplicateReturnsPriorTimestamp(t *testing.T) {
	store := newFakeStore()
	svc := fixtureRegistrar(store, nil)

	first, err := svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP01")
	var dup *apperr.DuplicateAttendance
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !dup.PriorAt.Equal(first.Attendance.RegisteredAt) {
		t.Errorf("prior timestamp = %v, want %v", dup.PriorAt, first.Attendance.RegisteredAt)
	}
	if dup.StudentName != "Maria Lopez" || dup.CarnetCode != "CARNET-9" {
		t.Errorf("duplicate should carry the student summary: %+v", dup)
	}
	if store.inserted != 1 {
		t.Errorf("inserted %d rows, want exactly 1", store.inserted)
	}
}

func TestRegisterUniqueViolationRaceReportsDuplicate(t *testing.T) {
	// The pre-check sees nothing but the insert hits the unique index,
	// as happens when two scans of the same carnet race.
	store := newFakeStore()
	store.insertErr = &pgconn.PgError{Code: "23505"}
	svc := fixtureRegistrar(store, nil)

	_, err := svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP01")
	var dup *apperr.DuplicateAttendance
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error on unique violation, got %v", err)
	}
}

func TestRegisterManual(t *testing.T) {
	store := newFakeStore()
	svc := fixtureRegistrar(store, nil)
	actor := policy.Actor{UserID: "staff-1", Role: policy.RoleProfessional, AreaID: "a1"}

	result, err := svc.RegisterManual(context.Background(), actor, ManualInput{EventID: "evt-1", CarnetCode: "carnet-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attendance.Method != MethodManualQR {
		t.Errorf("carnet path method = %s, want %s", result.Attendance.Method, MethodManualQR)
	}
	if result.Attendance.RegisteredBy == nil || *result.Attendance.RegisteredBy != "staff-1" {
		t.Error("manual registrations should record the staff actor")
	}
	if result.Attendance.DeviceID != nil {
		t.Error("manual registrations carry no device")
	}
}

func TestRegisterManualByDocument(t *testing.T) {
	svc := fixtureRegistrar(newFakeStore(), nil)
	actor := policy.Actor{UserID: "staff-1", Role: policy.RoleProfessional}

	result, err := svc.RegisterManual(context.Background(), actor, ManualInput{EventID: "evt-1", NationalID: "1002003004"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attendance.Method != MethodManualDocument {
		t.Errorf("document path method = %s, want %s", result.Attendance.Method, MethodManualDocument)
	}
}

func TestRegisterManualValidation(t *testing.T) {
	svc := fixtureRegistrar(newFakeStore(), nil)
	actor := policy.Actor{UserID: "staff-1", Role: policy.RoleProfessional}

	if _, err := svc.RegisterManual(context.Background(), actor, ManualInput{EventID: "evt-1"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("missing identifiers should be a validation error, got %v", err)
	}
	if _, err := svc.RegisterManual(context.Background(), actor, ManualInput{EventID: "missing", CarnetCode: "CARNET-9"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown event should be not found, got %v", err)
	}
}

func TestDeleteAttendance(t *testing.T) {
	store := newFakeStore()
	svc := fixtureRegistrar(store, nil)

	result, err := svc.RegisterFromDevice(context.Background(), "CARNET-9", "ESP01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(context.Background(), result.Attendance.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(context.Background(), result.Attendance.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second delete should be not found, got %v", err)
	}
}

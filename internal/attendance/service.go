package attendance

import (
	"context"
	"log"
	"strings"
	"time"

	"asistencia/internal/apperr"
	"asistencia/internal/device"
	"asistencia/internal/event"
	"asistencia/internal/metrics"
	"asistencia/internal/policy"
	"asistencia/internal/queue"
	"asistencia/internal/store"
	"asistencia/internal/student"
)

// Store is the persistence surface the registrar needs.
type Store interface {
	Insert(ctx context.Context, a Attendance) (Attendance, error)
	GetForPair(ctx context.Context, eventID, studentID string) (*Attendance, error)
	ListByEvent(ctx context.Context, eventID string) ([]Record, error)
	ListByStudent(ctx context.Context, studentID string) ([]EventRecord, error)
	HourlyStats(ctx context.Context, eventID string) (int, []HourCount, error)
	Delete(ctx context.Context, id string) (bool, error)
	ExportRows(ctx context.Context, eventID string) ([]ExportRow, error)
}

// Events resolves event state for the registrar.
type Events interface {
	Get(ctx context.Context, id string) (*event.Event, error)
	GetActiveForDevice(ctx context.Context, deviceID string) (*event.Event, error)
}

// Devices resolves scanning hardware by code.
type Devices interface {
	GetByCode(ctx context.Context, code string) (*device.Device, error)
}

// Students resolves active students by their identifying tokens.
type Students interface {
	GetActiveByCarnet(ctx context.Context, carnet string) (*student.Student, error)
	GetActiveByNationalID(ctx context.Context, nationalID string) (*student.Student, error)
}

// Service is the attendance registrar: it validates a scan or manual
// entry against an event and an eligible student and performs an
// at-most-once insert per (event, student) pair.
type Service struct {
	store    Store
	events   Events
	devices  Devices
	students Students
	queue    queue.Queue
}

// NewService creates a registrar. q may be nil to skip export fan-out.
func NewService(st Store, events Events, devices Devices, students Students, q queue.Queue) *Service {
	return &Service{store: st, events: events, devices: devices, students: students, queue: q}
}

// StudentSummary is the student slice echoed in registration responses.
type StudentSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CarnetCode string `json:"carnet_code"`
	Email      string `json:"email"`
}

// EventSummary is the event slice echoed in registration responses.
type EventSummary struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Result is a successful registration joined with its summaries.
type Result struct {
	Attendance Attendance     `json:"attendance"`
	Student    StudentSummary `json:"student"`
	Event      EventSummary   `json:"event"`
}

// RegisterFromDevice handles the unauthenticated hardware path: the
// device must exist and be active, and an active non-finalized event
// must be bound to it.
func (s *Service) RegisterFromDevice(ctx context.Context, carnetCode, deviceCode string) (Result, error) {
	carnetCode = strings.ToUpper(strings.TrimSpace(carnetCode))
	deviceCode = strings.ToUpper(strings.TrimSpace(deviceCode))
	if carnetCode == "" || deviceCode == "" {
		metrics.Registrations.WithLabelValues(string(MethodDevice), "validation").Inc()
		return Result{}, apperr.Validation("carnet_code and device_code are required")
	}

	d, err := s.devices.GetByCode(ctx, deviceCode)
	if err != nil {
		return Result{}, apperr.Internal("could not load device", err)
	}
	if d == nil || !d.Active {
		metrics.Registrations.WithLabelValues(string(MethodDevice), "not_found").Inc()
		return Result{}, apperr.NotFound("device not found or inactive")
	}

	evt, err := s.events.GetActiveForDevice(ctx, d.ID)
	if err != nil {
		return Result{}, apperr.Internal("could not load event", err)
	}
	if evt == nil {
		metrics.Registrations.WithLabelValues(string(MethodDevice), "no_active_event").Inc()
		return Result{}, apperr.NotFound("no active event for this device")
	}

	st, err := s.resolveStudentByCarnet(ctx, carnetCode)
	if err != nil {
		metrics.Registrations.WithLabelValues(string(MethodDevice), "not_found").Inc()
		return Result{}, err
	}

	return s.register(ctx, *evt, *st, &d.ID, carnetCode, MethodDevice, nil)
}

// ManualInput carries an authenticated staff registration: exactly one
// of carnet_code or national_id identifies the student.
type ManualInput struct {
	EventID    string `json:"event_id" binding:"required"`
	CarnetCode string `json:"carnet_code"`
	NationalID string `json:"national_id"`
}

// RegisterManual handles the authenticated QR/document path.
func (s *Service) RegisterManual(ctx context.Context, actor policy.Actor, in ManualInput) (Result, error) {
	method := MethodManualQR
	token := strings.ToUpper(strings.TrimSpace(in.CarnetCode))
	if token == "" {
		method = MethodManualDocument
		token = strings.ToUpper(strings.TrimSpace(in.NationalID))
	}
	if in.EventID == "" || token == "" {
		metrics.Registrations.WithLabelValues(string(method), "validation").Inc()
		return Result{}, apperr.Validation("event_id and one of carnet_code or national_id are required")
	}

	evt, err := s.events.Get(ctx, in.EventID)
	if err != nil {
		return Result{}, apperr.Internal("could not load event", err)
	}
	if evt == nil {
		metrics.Registrations.WithLabelValues(string(method), "not_found").Inc()
		return Result{}, apperr.NotFound("event not found")
	}

	var st *student.Student
	if method == MethodManualQR {
		st, err = s.resolveStudentByCarnet(ctx, token)
	} else {
		st, err = s.resolveStudentByNationalID(ctx, token)
	}
	if err != nil {
		metrics.Registrations.WithLabelValues(string(method), "not_found").Inc()
		return Result{}, err
	}

	registeredBy := actor.UserID
	return s.register(ctx, *evt, *st, nil, token, method, &registeredBy)
}

func (s *Service) resolveStudentByCarnet(ctx context.Context, carnet string) (*student.Student, error) {
	st, err := s.students.GetActiveByCarnet(ctx, carnet)
	if err != nil {
		return nil, apperr.Internal("could not load student", err)
	}
	if st == nil {
		// The submitted code is echoed so operators can troubleshoot
		// mistyped or unsynced carnets.
		return nil, apperr.NotFound("student not found: " + carnet)
	}
	return st, nil
}

func (s *Service) resolveStudentByNationalID(ctx context.Context, nationalID string) (*student.Student, error) {
	st, err := s.students.GetActiveByNationalID(ctx, nationalID)
	if err != nil {
		return nil, apperr.Internal("could not load student", err)
	}
	if st == nil {
		return nil, apperr.NotFound("student not found: " + nationalID)
	}
	return st, nil
}

// register performs the duplicate-guarded insert. The pre-check exists
// only for the friendly prior-timestamp message; the unique index is the
// correctness guarantee, so a unique violation on insert is re-read and
// reported as the same duplicate outcome.
func (s *Service) register(ctx context.Context, evt event.Event, st student.Student, deviceID *string, scannedCode string, method Method, registeredBy *string) (Result, error) {
	if prior, err := s.store.GetForPair(ctx, evt.ID, st.ID); err != nil {
		return Result{}, apperr.Internal("could not check prior attendance", err)
	} else if prior != nil {
		metrics.Registrations.WithLabelValues(string(method), "duplicate").Inc()
		return Result{}, &apperr.DuplicateAttendance{
			StudentName: st.Name,
			CarnetCode:  st.CarnetCode,
			PriorAt:     prior.RegisteredAt,
		}
	}

	created, err := s.store.Insert(ctx, Attendance{
		EventID:      evt.ID,
		StudentID:    st.ID,
		DeviceID:     deviceID,
		ScannedCode:  scannedCode,
		Method:       method,
		RegisteredBy: registeredBy,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			prior, perr := s.store.GetForPair(ctx, evt.ID, st.ID)
			if perr == nil && prior != nil {
				metrics.Registrations.WithLabelValues(string(method), "duplicate").Inc()
				return Result{}, &apperr.DuplicateAttendance{
					StudentName: st.Name,
					CarnetCode:  st.CarnetCode,
					PriorAt:     prior.RegisteredAt,
				}
			}
			metrics.Registrations.WithLabelValues(string(method), "duplicate").Inc()
			return Result{}, &apperr.DuplicateAttendance{StudentName: st.Name, CarnetCode: st.CarnetCode}
		}
		return Result{}, apperr.Internal("could not register attendance", err)
	}

	metrics.Registrations.WithLabelValues(string(method), "success").Inc()
	log.Printf("attendance registered: student=%s event=%s method=%s", st.Name, evt.Name, method)

	if s.queue != nil {
		if err := s.queue.Publish(ctx, queue.Message{Type: queue.TypeAttendance, Body: []byte(created.ID)}); err != nil {
			log.Printf("export queue publish failed: %v", err)
		}
	}

	return Result{
		Attendance: created,
		Student:    StudentSummary{ID: st.ID, Name: st.Name, CarnetCode: st.CarnetCode, Email: st.Email},
		Event:      EventSummary{ID: evt.ID, Name: evt.Name, Date: evt.Date},
	}, nil
}

// ListByEvent returns an event's registrations.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]Record, error) {
	records, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("could not list attendance", err)
	}
	return records, nil
}

// ListByStudent returns a student's attendance history.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]EventRecord, error) {
	records, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, apperr.Internal("could not list attendance history", err)
	}
	return records, nil
}

// Stats returns the total and per-hour histogram for an event.
func (s *Service) Stats(ctx context.Context, eventID string) (int, []HourCount, error) {
	total, hours, err := s.store.HourlyStats(ctx, eventID)
	if err != nil {
		return 0, nil, apperr.Internal("could not compute statistics", err)
	}
	return total, hours, nil
}

// Delete removes an attendance row; route-level policy restricts this to
// administrators.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("could not delete attendance", err)
	}
	if !deleted {
		return apperr.NotFound("attendance not found")
	}
	return nil
}

// Export returns live flat rows for the spreadsheet collaborator.
func (s *Service) Export(ctx context.Context, eventID string) ([]ExportRow, error) {
	rows, err := s.store.ExportRows(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("could not build export", err)
	}
	return rows, nil
}

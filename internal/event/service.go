package event

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"asistencia/internal/apperr"
	"asistencia/internal/area"
	"asistencia/internal/device"
	"asistencia/internal/metrics"
	"asistencia/internal/policy"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, e Event) (Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, f ListFilter) ([]Event, error)
	Update(ctx context.Context, e Event) (Event, error)
	Delete(ctx context.Context, id string) (bool, error)
	FinalizeDue(ctx context.Context, now time.Time) (int64, error)
	GetActiveForDevice(ctx context.Context, deviceID string) (*Event, error)
	InsertPhoto(ctx context.Context, eventID string, p Photo) (Photo, error)
	ListPhotos(ctx context.Context, eventID string) ([]Photo, error)
	DeletePhoto(ctx context.Context, eventID, photoID string) (bool, error)
}

// Devices resolves device references.
type Devices interface {
	Get(ctx context.Context, id string) (*device.Device, error)
	GetByCode(ctx context.Context, code string) (*device.Device, error)
}

// Areas resolves area references.
type Areas interface {
	Get(ctx context.Context, id string) (*area.Area, error)
}

// Service coordinates the event lifecycle: creation with derived
// instants, policy-scoped listing with an inline finalization sweep,
// and the device polling lookup.
type Service struct {
	store    Store
	devices  Devices
	areas    Areas
	cache    *redis.Client
	cacheTTL time.Duration
	loc      *time.Location
}

// NewService creates a service. cache may be nil to disable the device
// polling cache; loc is the wall-clock timezone event times are given in.
func NewService(store Store, devices Devices, areas Areas, cache *redis.Client, cacheTTL time.Duration, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, devices: devices, areas: areas, cache: cache, cacheTTL: cacheTTL, loc: loc}
}

// Schedule is the derived pair of absolute instants for an event.
type Schedule struct {
	Date     time.Time
	StartsAt time.Time
	EndsAt   time.Time
}

// DeriveSchedule turns a date plus wall-clock start/end strings into
// absolute instants in loc. An end before the start rolls to the next
// day (events crossing midnight).
func DeriveSchedule(dateStr, startStr, endStr string, loc *time.Location) (Schedule, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return Schedule{}, apperr.Validation("date must be YYYY-MM-DD")
	}
	start, err := time.Parse("15:04", startStr)
	if err != nil {
		return Schedule{}, apperr.Validation("start_time must be HH:MM")
	}
	end, err := time.Parse("15:04", endStr)
	if err != nil {
		return Schedule{}, apperr.Validation("end_time must be HH:MM")
	}
	startsAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, loc)
	endsAt := time.Date(date.Year(), date.Month(), date.Day(), end.Hour(), end.Minute(), 0, 0, loc)
	if !endsAt.After(startsAt) {
		endsAt = endsAt.Add(24 * time.Hour)
	}
	return Schedule{Date: date, StartsAt: startsAt, EndsAt: endsAt}, nil
}

// CreateInput carries new-event fields.
type CreateInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
	Place       string `json:"place" binding:"required"`
	ImageURL    string `json:"image_url"`
	Period      string `json:"period" binding:"required"`
	AreaID      string `json:"area_id"`
	DeviceID    string `json:"device_id"`
}

// Create registers a new event owned by the actor's area (administrators
// may choose any area).
func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (Event, error) {
	name := strings.TrimSpace(in.Name)
	place := strings.TrimSpace(in.Place)
	period := strings.TrimSpace(in.Period)
	if name == "" || place == "" || period == "" {
		return Event{}, apperr.Validation("name, place and period are required")
	}
	sched, err := DeriveSchedule(in.Date, in.StartTime, in.EndTime, s.loc)
	if err != nil {
		return Event{}, err
	}

	areaID := actor.AreaID
	if in.AreaID != "" && in.AreaID != actor.AreaID {
		if err := policy.CanChangeEventArea(actor); err != nil {
			return Event{}, err
		}
		areaID = in.AreaID
	}
	if a, err := s.areas.Get(ctx, areaID); err != nil {
		return Event{}, apperr.Internal("could not load area", err)
	} else if a == nil {
		return Event{}, apperr.NotFound("area not found")
	}

	var deviceRef *DeviceRef
	if in.DeviceID != "" {
		d, err := s.devices.Get(ctx, in.DeviceID)
		if err != nil {
			return Event{}, apperr.Internal("could not load device", err)
		}
		if d == nil {
			return Event{}, apperr.NotFound("device not found")
		}
		deviceRef = &DeviceRef{ID: d.ID, Code: d.Code, Name: d.Name}
	}

	created, err := s.store.Insert(ctx, Event{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Date:        sched.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		StartsAt:    sched.StartsAt,
		EndsAt:      sched.EndsAt,
		Place:       place,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Period:      period,
		AreaID:      areaID,
		CreatedBy:   actor.UserID,
		Device:      deviceRef,
		Active:      true,
		Finalized:   false,
	})
	if err != nil {
		return Event{}, apperr.Internal("could not create event", err)
	}
	return created, nil
}

// Filters are the optional request filters for event listings.
type Filters struct {
	AreaID    string
	Period    string
	CreatedBy string
	DeviceID  string
	Active    *bool
	Finalized *bool
	DateFrom  *time.Time
	DateTo    *time.Time
}

// List returns the events visible to the actor. The finalization sweep
// runs first so no stale "active" event whose end time passed is ever
// returned; sweep failures are logged and do not fail the listing.
func (s *Service) List(ctx context.Context, actor policy.Actor, f Filters) ([]Event, error) {
	if _, err := s.FinalizeDueEvents(ctx, time.Now()); err != nil {
		log.Printf("read-path finalize sweep failed: %v", err)
	}

	scope := policy.ScopeForEvents(actor)
	events, err := s.store.List(ctx, ListFilter{
		ScopeAll:       scope.All,
		ScopeCreatedBy: scope.CreatedBy,
		ScopeAreaID:    scope.AreaID,
		AreaID:         f.AreaID,
		Period:         f.Period,
		CreatedBy:      f.CreatedBy,
		DeviceID:       f.DeviceID,
		Active:         f.Active,
		Finalized:      f.Finalized,
		DateFrom:       f.DateFrom,
		DateTo:         f.DateTo,
	})
	if err != nil {
		return nil, apperr.Internal("could not list events", err)
	}
	return events, nil
}

// Get returns one event with its photos.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return Event{}, apperr.Internal("could not load event", err)
	}
	if e == nil {
		return Event{}, apperr.NotFound("event not found")
	}
	photos, err := s.store.ListPhotos(ctx, id)
	if err != nil {
		return Event{}, apperr.Internal("could not load event photos", err)
	}
	e.Photos = photos
	return *e, nil
}

// UpdateInput carries optional event changes; nil fields stay untouched.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Place       *string `json:"place"`
	ImageURL    *string `json:"image_url"`
	Period      *string `json:"period"`
	AreaID      *string `json:"area_id"`
	DeviceID    *string `json:"device_id"`
	Active      *bool   `json:"active"`
	Finalized   *bool   `json:"finalized"`
}

// Update applies partial changes under the actor's policy, rederiving
// the absolute instants whenever the date or times change.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id string, in UpdateInput) (Event, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Event{}, apperr.Internal("could not load event", err)
	}
	if current == nil {
		return Event{}, apperr.NotFound("event not found")
	}
	if err := policy.CanMutateEvent(actor, policy.EventTarget{CreatedBy: current.CreatedBy, AreaID: current.AreaID}); err != nil {
		return Event{}, err
	}

	if in.AreaID != nil && *in.AreaID != current.AreaID {
		if err := policy.CanChangeEventArea(actor); err != nil {
			return Event{}, err
		}
		if a, err := s.areas.Get(ctx, *in.AreaID); err != nil {
			return Event{}, apperr.Internal("could not load area", err)
		} else if a == nil {
			return Event{}, apperr.NotFound("area not found")
		}
		current.AreaID = *in.AreaID
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Event{}, apperr.Validation("name cannot be empty")
		}
		current.Name = name
	}
	if in.Description != nil {
		current.Description = strings.TrimSpace(*in.Description)
	}
	if in.Place != nil {
		place := strings.TrimSpace(*in.Place)
		if place == "" {
			return Event{}, apperr.Validation("place cannot be empty")
		}
		current.Place = place
	}
	if in.ImageURL != nil {
		current.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Period != nil {
		period := strings.TrimSpace(*in.Period)
		if period == "" {
			return Event{}, apperr.Validation("period cannot be empty")
		}
		current.Period = period
	}

	if in.Date != nil || in.StartTime != nil || in.EndTime != nil {
		dateStr := current.Date.Format("2006-01-02")
		if in.Date != nil {
			dateStr = *in.Date
		}
		startStr := current.StartTime
		if in.StartTime != nil {
			startStr = *in.StartTime
		}
		endStr := current.EndTime
		if in.EndTime != nil {
			endStr = *in.EndTime
		}
		sched, err := DeriveSchedule(dateStr, startStr, endStr, s.loc)
		if err != nil {
			return Event{}, err
		}
		current.Date = sched.Date
		current.StartTime = startStr
		current.EndTime = endStr
		current.StartsAt = sched.StartsAt
		current.EndsAt = sched.EndsAt
	}

	if in.DeviceID != nil {
		if *in.DeviceID == "" {
			current.Device = nil
		} else {
			d, err := s.devices.Get(ctx, *in.DeviceID)
			if err != nil {
				return Event{}, apperr.Internal("could not load device", err)
			}
			if d == nil {
				return Event{}, apperr.NotFound("device not found")
			}
			current.Device = &DeviceRef{ID: d.ID, Code: d.Code, Name: d.Name}
		}
	}
	if in.Active != nil {
		current.Active = *in.Active
	}
	if in.Finalized != nil {
		// Manual toggling of the finalized flag is administrator-only;
		// the sweep only ever sets it.
		if actor.Role != policy.RoleAdministrator {
			return Event{}, apperr.Forbidden("only administrators may toggle the finalized flag")
		}
		current.Finalized = *in.Finalized
	}

	updated, err := s.store.Update(ctx, *current)
	if err != nil {
		return Event{}, apperr.Internal("could not update event", err)
	}
	return updated, nil
}

// Delete removes an event under the actor's policy.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return apperr.Internal("could not load event", err)
	}
	if current == nil {
		return apperr.NotFound("event not found")
	}
	if err := policy.CanMutateEvent(actor, policy.EventTarget{CreatedBy: current.CreatedBy, AreaID: current.AreaID}); err != nil {
		return err
	}
	if _, err := s.store.Delete(ctx, id); err != nil {
		return apperr.Internal("could not delete event", err)
	}
	return nil
}

// FinalizeDueEvents is the single finalization authority. Both the
// background ticker and the listing read path call it; the conditional
// update makes repeated or concurrent invocations idempotent.
func (s *Service) FinalizeDueEvents(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.store.FinalizeDue(ctx, now)
	if err != nil {
		metrics.SweepErrors.Inc()
		return 0, err
	}
	if count > 0 {
		metrics.FinalizedEvents.Add(float64(count))
		log.Printf("finalized %d event(s) past their end time", count)
	}
	return count, nil
}

// ActiveSummary is the device polling response payload.
type ActiveSummary struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Place     string    `json:"place"`
	EndsAt    time.Time `json:"ends_at"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// ActiveEventForDevice returns the event currently accepting scans from
// the device with the given code. Hardware polls this every few seconds,
// so positive lookups are cached briefly in redis.
func (s *Service) ActiveEventForDevice(ctx context.Context, code string) (ActiveSummary, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ActiveSummary{}, apperr.Validation("device code is required")
	}

	cacheKey := "active-event:" + code
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached ActiveSummary
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	d, err := s.devices.GetByCode(ctx, code)
	if err != nil {
		return ActiveSummary{}, apperr.Internal("could not load device", err)
	}
	if d == nil {
		return ActiveSummary{}, apperr.NotFound("device not found")
	}
	e, err := s.store.GetActiveForDevice(ctx, d.ID)
	if err != nil {
		return ActiveSummary{}, apperr.Internal("could not load event", err)
	}
	if e == nil {
		return ActiveSummary{}, apperr.NotFound("no active event for this device")
	}

	summary := ActiveSummary{
		EventID:   e.ID,
		Name:      e.Name,
		Date:      e.Date,
		Place:     e.Place,
		EndsAt:    e.EndsAt,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
	}
	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, s.cacheTTL).Err()
		}
	}
	return summary, nil
}

// AddPhoto attaches an evidence photo under the actor's policy.
func (s *Service) AddPhoto(ctx context.Context, actor policy.Actor, eventID, url, description string) (Photo, error) {
	current, err := s.store.Get(ctx, eventID)
	if err != nil {
		return Photo{}, apperr.Internal("could not load event", err)
	}
	if current == nil {
		return Photo{}, apperr.NotFound("event not found")
	}
	if err := policy.CanMutateEvent(actor, policy.EventTarget{CreatedBy: current.CreatedBy, AreaID: current.AreaID}); err != nil {
		return Photo{}, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Photo{}, apperr.Validation("photo url is required")
	}
	photo, err := s.store.InsertPhoto(ctx, eventID, Photo{URL: url, Description: strings.TrimSpace(description)})
	if err != nil {
		return Photo{}, apperr.Internal("could not save photo", err)
	}
	return photo, nil
}

// RemovePhoto detaches an evidence photo under the actor's policy.
func (s *Service) RemovePhoto(ctx context.Context, actor policy.Actor, eventID, photoID string) error {
	current, err := s.store.Get(ctx, eventID)
	if err != nil {
		return apperr.Internal("could not load event", err)
	}
	if current == nil {
		return apperr.NotFound("event not found")
	}
	if err := policy.CanMutateEvent(actor, policy.EventTarget{CreatedBy: current.CreatedBy, AreaID: current.AreaID}); err != nil {
		return err
	}
	deleted, err := s.store.DeletePhoto(ctx, eventID, photoID)
	if err != nil {
		return apperr.Internal("could not delete photo", err)
	}
	if !deleted {
		return apperr.NotFound("photo not found")
	}
	return nil
}

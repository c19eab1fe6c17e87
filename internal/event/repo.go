package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeviceRef is the joined summary of the device bound to an event.
type DeviceRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Photo is an evidence photo owned by an event. Photos are only ever
// mutated through event endpoints.
type Photo struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Event is a scheduled activity students register attendance for.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	Place       string     `json:"place"`
	ImageURL    string     `json:"image_url"`
	Period      string     `json:"period"`
	AreaID      string     `json:"area_id"`
	CreatedBy   string     `json:"created_by"`
	Device      *DeviceRef `json:"device,omitempty"`
	Active      bool       `json:"active"`
	Finalized   bool       `json:"finalized"`
	Photos      []Photo    `json:"photos,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListFilter narrows event listings. Scope fields come from the access
// policy; the rest are optional request filters.
type ListFilter struct {
	ScopeAll       bool
	ScopeCreatedBy string
	ScopeAreaID    string

	AreaID    string
	Period    string
	CreatedBy string
	DeviceID  string
	Active    *bool
	Finalized *bool
	DateFrom  *time.Time
	DateTo    *time.Time
}

// Repository persists events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const eventColumns = `e.id, e.name, e.description, e.event_date, e.start_time, e.end_time,
	e.starts_at, e.ends_at, e.place, e.image_url, e.period, e.area_id, e.created_by,
	e.active, e.finalized, e.created_at, e.updated_at,
	d.id, d.code, d.name`

const eventFrom = ` FROM events e LEFT JOIN devices d ON d.id = e.device_id`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	var devID, devCode, devName sql.NullString
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date, &e.StartTime, &e.EndTime,
		&e.StartsAt, &e.EndsAt, &e.Place, &e.ImageURL, &e.Period, &e.AreaID, &e.CreatedBy,
		&e.Active, &e.Finalized, &e.CreatedAt, &e.UpdatedAt,
		&devID, &devCode, &devName)
	if err != nil {
		return Event{}, err
	}
	if devID.Valid {
		e.Device = &DeviceRef{ID: devID.String, Code: devCode.String, Name: devName.String}
	}
	return e, nil
}

// Insert writes a new event.
func (r *Repository) Insert(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var deviceID *string
	if e.Device != nil {
		deviceID = &e.Device.ID
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, name, description, event_date, start_time, end_time,
			starts_at, ends_at, place, image_url, period, area_id, created_by, device_id,
			active, finalized)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at
	`, e.ID, e.Name, e.Description, e.Date, e.StartTime, e.EndTime,
		e.StartsAt, e.EndsAt, e.Place, e.ImageURL, e.Period, e.AreaID, e.CreatedBy, deviceID,
		e.Active, e.Finalized)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Get returns an event by id with its device summary, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns events under the given scope and filters, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + eventFrom
	args := []any{}
	clauses := []string{}

	add := func(clause string, value any) {
		clauses = append(clauses, fmt.Sprintf(clause, len(args)+1))
		args = append(args, value)
	}

	switch {
	case f.ScopeAll:
		// no scope restriction
	case f.ScopeAreaID != "":
		add("e.area_id = $%d", f.ScopeAreaID)
	default:
		add("e.created_by = $%d", f.ScopeCreatedBy)
	}
	if f.AreaID != "" {
		add("e.area_id = $%d", f.AreaID)
	}
	if f.Period != "" {
		add("e.period = $%d", f.Period)
	}
	if f.CreatedBy != "" {
		add("e.created_by = $%d", f.CreatedBy)
	}
	if f.DeviceID != "" {
		add("e.device_id = $%d", f.DeviceID)
	}
	if f.Active != nil {
		add("e.active = $%d", *f.Active)
	}
	if f.Finalized != nil {
		add("e.finalized = $%d", *f.Finalized)
	}
	if f.DateFrom != nil {
		add("e.event_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("e.event_date <= $%d", *f.DateTo)
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY e.event_date DESC, e.starts_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Update rewrites the mutable fields of an event.
func (r *Repository) Update(ctx context.Context, e Event) (Event, error) {
	var deviceID *string
	if e.Device != nil {
		deviceID = &e.Device.ID
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE events
		SET name = $2, description = $3, event_date = $4, start_time = $5, end_time = $6,
			starts_at = $7, ends_at = $8, place = $9, image_url = $10, period = $11,
			area_id = $12, device_id = $13, active = $14, finalized = $15, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, e.ID, e.Name, e.Description, e.Date, e.StartTime, e.EndTime,
		e.StartsAt, e.EndsAt, e.Place, e.ImageURL, e.Period,
		e.AreaID, deviceID, e.Active, e.Finalized)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Delete removes an event and (by cascade) its photos and attendance.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FinalizeDue flips every event whose end instant has passed and is not
// yet finalized. The update is conditional and idempotent, so the timer
// sweep, the read-path sweep and concurrent callers can all race safely.
func (r *Repository) FinalizeDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET finalized = TRUE, updated_at = NOW()
		WHERE ends_at < $1 AND finalized = FALSE
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetActiveForDevice returns the event currently accepting scans from
// the device: bound to it, active and not finalized.
func (r *Repository) GetActiveForDevice(ctx context.Context, deviceID string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+eventFrom+`
		WHERE e.device_id = $1 AND e.active = TRUE AND e.finalized = FALSE
		ORDER BY e.starts_at DESC
		LIMIT 1
	`, deviceID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertPhoto attaches an evidence photo to an event.
func (r *Repository) InsertPhoto(ctx context.Context, eventID string, p Photo) (Photo, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO event_photos (id, event_id, url, description)
		VALUES ($1,$2,$3,$4)
		RETURNING uploaded_at
	`, p.ID, eventID, p.URL, p.Description)
	if err := row.Scan(&p.UploadedAt); err != nil {
		return Photo{}, err
	}
	return p, nil
}

// ListPhotos returns an event's photos, oldest first.
func (r *Repository) ListPhotos(ctx context.Context, eventID string) ([]Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, description, uploaded_at
		FROM event_photos
		WHERE event_id = $1
		ORDER BY uploaded_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.URL, &p.Description, &p.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeletePhoto removes one photo from an event.
func (r *Repository) DeletePhoto(ctx context.Context, eventID, photoID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM event_photos WHERE id = $1 AND event_id = $2`, photoID, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

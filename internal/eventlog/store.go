// Package eventlog persists device events and answers history queries
// for dashboards, state sync and usage aggregation.
package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
)

// Page size bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// ErrNotFound is returned by Latest when no event matches.
var ErrNotFound = errors.New("eventlog: no matching event")

// Filter controls which events to return. Zero values mean "no constraint".
type Filter struct {
	Channel      device.Channel
	Actor        string
	Action       string
	Source       string
	DeviceID     *int
	From         time.Time // inclusive
	To           time.Time // inclusive
	Before       time.Time // exclusive
	ExcludeActor string
	Page         int // 1-based, default 1
	Limit        int // default DefaultLimit, max MaxLimit
}

// ListResult contains one page of events, newest first.
type ListResult struct {
	Logs  []device.Event `json:"logs"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// Store is the event log seen by the dispatcher, control service and
// usage aggregator.
type Store interface {
	Append(ctx context.Context, ev *device.Event) error
	Query(ctx context.Context, filter Filter) (*ListResult, error)
	Latest(ctx context.Context, filter Filter) (*device.Event, error)
	LatestPerDevice(ctx context.Context, ch device.Channel) ([]device.Event, error)
	Range(ctx context.Context, ch device.Channel, from, to time.Time) ([]device.Event, error)
}

// SQLiteStore stores events in the device_events table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store over an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

const selectColumns = "SELECT id, channel, device_id, action, actor, source, created_at FROM device_events"

// Append inserts ev and sets its ID. A zero Timestamp is set to now.
func (s *SQLiteStore) Append(ctx context.Context, ev *device.Event) error {
	if !ev.Channel.Logged() {
		return fmt.Errorf("appending event: %w: %q is not a logged channel", device.ErrUnknownChannel, ev.Channel)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	var deviceID any
	if ev.DeviceID != nil {
		deviceID = *ev.DeviceID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO device_events (channel, device_id, action, actor, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Channel), deviceID, ev.Action, ev.Actor, ev.Source,
		device.FormatTimestamp(ev.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting device event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device event id: %w", err)
	}
	ev.ID = id
	return nil
}

// Query returns one page of matching events, newest first, and the total
// number of matches.
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	where, args := buildWhere(filter)

	countQuery := "SELECT COUNT(*) FROM device_events" + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting device events: %w", err)
	}

	query := selectColumns + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?" //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	logs, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Logs:  logs,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// Latest returns the newest event matching filter, or ErrNotFound.
// Page and Limit are ignored.
func (s *SQLiteStore) Latest(ctx context.Context, filter Filter) (*device.Event, error) {
	where, args := buildWhere(filter)
	query := selectColumns + where + " ORDER BY created_at DESC, id DESC LIMIT 1" //nolint:gosec // WHERE built from parameterised conditions

	events, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return &events[0], nil
}

// LatestPerDevice returns the newest event for each device id on ch,
// ordered by device id. Events without a device id are skipped.
func (s *SQLiteStore) LatestPerDevice(ctx context.Context, ch device.Channel) ([]device.Event, error) {
	query := selectColumns + ` AS e
		WHERE e.channel = ? AND e.device_id IS NOT NULL
		  AND e.id = (
			SELECT id FROM device_events
			WHERE channel = e.channel AND device_id = e.device_id
			ORDER BY created_at DESC, id DESC LIMIT 1)
		ORDER BY e.device_id`
	return s.queryEvents(ctx, query, string(ch))
}

// Range returns every event on ch with from <= timestamp <= to, in
// insertion order.
func (s *SQLiteStore) Range(ctx context.Context, ch device.Channel, from, to time.Time) ([]device.Event, error) {
	where, args := buildWhere(Filter{Channel: ch, From: from, To: to})
	return s.queryEvents(ctx, selectColumns+where+" ORDER BY id", args...)
}

// buildWhere assembles a parameterised WHERE clause from filter.
func buildWhere(filter Filter) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}

	if filter.Channel != "" {
		add("channel = ?", string(filter.Channel))
	}
	if filter.Actor != "" {
		add("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		add("action = ?", filter.Action)
	}
	if filter.Source != "" {
		add("source = ?", filter.Source)
	}
	if filter.DeviceID != nil {
		add("device_id = ?", *filter.DeviceID)
	}
	if !filter.From.IsZero() {
		add("created_at >= ?", device.FormatTimestamp(filter.From))
	}
	if !filter.To.IsZero() {
		add("created_at <= ?", device.FormatTimestamp(filter.To))
	}
	if !filter.Before.IsZero() {
		add("created_at < ?", device.FormatTimestamp(filter.Before))
	}
	if filter.ExcludeActor != "" {
		add("actor != ?", filter.ExcludeActor)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]device.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying device events: %w", err)
	}
	defer rows.Close()

	events := []device.Event{}
	for rows.Next() {
		var ev device.Event
		var channel, createdAt string
		var deviceID sql.NullInt64

		if err := rows.Scan(&ev.ID, &channel, &deviceID, &ev.Action, &ev.Actor, &ev.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device event: %w", err)
		}

		ev.Channel = device.Channel(channel)
		if deviceID.Valid {
			ev.DeviceID = device.LightID(int(deviceID.Int64))
		}
		ev.Timestamp, err = device.ParseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing device event timestamp: %w", err)
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device events: %w", err)
	}
	return events, nil
}

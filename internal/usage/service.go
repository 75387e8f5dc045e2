package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
)

// Defaults for the hourly light report.
const (
	DefaultBuckets    = 8
	DefaultBucketSize = time.Hour
)

// Store is the part of the event log the usage report reads.
type Store interface {
	Range(ctx context.Context, ch device.Channel, from, to time.Time) ([]device.Event, error)
	Latest(ctx context.Context, filter eventlog.Filter) (*device.Event, error)
}

// Row is one bucket of the hourly chart. Lights maps device id to minutes on.
type Row struct {
	Hour   string
	Start  time.Time
	Lights map[int]int
}

// Config configures a Service. Zero values pick defaults.
type Config struct {
	Buckets    int
	BucketSize time.Duration
	Lights     []int
	// Location renders bucket labels. Default UTC.
	Location *time.Location
}

// Service builds light usage reports from the event log.
type Service struct {
	store Store
	cfg   Config
}

// NewService creates a Service reading from store.
func NewService(store Store, cfg Config) *Service {
	if cfg.Buckets <= 0 {
		cfg.Buckets = DefaultBuckets
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = DefaultBucketSize
	}
	if len(cfg.Lights) == 0 {
		cfg.Lights = []int{1, 2, 3}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, cfg: cfg}
}

// Lights returns the device ids reported on.
func (s *Service) Lights() []int {
	return s.cfg.Lights
}

// Hourly returns ON minutes per light for each bucket of the lookback
// window ending at now, oldest first.
func (s *Service) Hourly(ctx context.Context, now time.Time) ([]Row, error) {
	now = now.UTC()
	windowStart := now.Add(-time.Duration(s.cfg.Buckets) * s.cfg.BucketSize)

	events, err := s.store.Range(ctx, device.ChannelLight, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("loading light events: %w", err)
	}

	lastBefore := make(map[int]string, len(s.cfg.Lights))
	for _, id := range s.cfg.Lights {
		ev, err := s.store.Latest(ctx, eventlog.Filter{
			Channel:  device.ChannelLight,
			DeviceID: device.LightID(id),
			Before:   windowStart,
		})
		if errors.Is(err, eventlog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading light %d state before window: %w", id, err)
		}
		lastBefore[id] = ev.Action
	}

	buckets := Aggregate(Input{
		WindowStart: windowStart,
		Now:         now,
		Buckets:     s.cfg.Buckets,
		BucketSize:  s.cfg.BucketSize,
		DeviceIDs:   s.cfg.Lights,
		Events:      events,
		LastBefore:  lastBefore,
	})

	rows := make([]Row, len(buckets))
	for i, b := range buckets {
		rows[i] = Row{
			Hour:   b.Start.In(s.cfg.Location).Format("15:04"),
			Start:  b.Start,
			Lights: b.Minutes,
		}
	}
	return rows, nil
}

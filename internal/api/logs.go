package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
)

// Page size caps for the log endpoints. Lights allow larger pages because
// the usage dashboard pulls whole days.
const (
	maxLightLogLimit = eventlog.MaxLimit
	maxLogLimit      = 100
)

// loggedChannel parses the {channel} URL parameter, rejecting alert.
func loggedChannel(r *http.Request) (device.Channel, bool) {
	ch, err := device.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil || !ch.Logged() {
		return "", false
	}
	return ch, true
}

// handleLogs handles GET /logs/{channel}.
//
// Query parameters: page, limit, user, action, source (door and
// clothesline), light_id (light), from_date and to_date.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	ch, ok := loggedChannel(r)
	if !ok {
		writeNotFound(w, "unknown log channel")
		return
	}

	filter, err := parseLogFilter(r, ch)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	result, err := s.logs.Query(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	for i := range result.Logs {
		result.Logs[i] = result.Logs[i].InZone(s.loc)
	}
	writeJSON(w, http.StatusOK, result)
}

func parseLogFilter(r *http.Request, ch device.Channel) (eventlog.Filter, error) {
	q := r.URL.Query()
	filter := eventlog.Filter{
		Channel: ch,
		Actor:   q.Get("user"),
		Action:  q.Get("action"),
		Page:    1,
		Limit:   eventlog.DefaultLimit,
	}

	maxLimit := maxLogLimit
	if ch == device.ChannelLight {
		maxLimit = maxLightLogLimit
	} else {
		filter.Source = q.Get("source")
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return filter, errors.New("limit must be between 1 and " + strconv.Itoa(maxLimit))
		}
		filter.Limit = limit
	}
	if v := q.Get("light_id"); v != "" && ch == device.ChannelLight {
		id, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("light_id must be an integer")
		}
		filter.DeviceID = device.LightID(id)
	}

	var err error
	if filter.From, err = parseDate(q.Get("from_date")); err != nil {
		return filter, errors.New("from_date: " + err.Error())
	}
	if filter.To, err = parseDate(q.Get("to_date")); err != nil {
		return filter, errors.New("to_date: " + err.Error())
	}
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return device.ParseTimestamp(v)
}

// handleLatestState handles GET /latest-state/{channel}.
//
// Lights return the newest event per light under "lights". Door and
// clothesline return their newest event; door intrusion attempts (actor
// Unknown) are skipped.
func (s *Server) handleLatestState(w http.ResponseWriter, r *http.Request) {
	ch, ok := loggedChannel(r)
	if !ok {
		writeNotFound(w, "unknown device channel")
		return
	}

	if ch == device.ChannelLight {
		lights, err := s.logs.LatestPerDevice(r.Context(), ch)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		for i := range lights {
			lights[i] = lights[i].InZone(s.loc)
		}
		if lights == nil {
			lights = []device.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"lights": lights})
		return
	}

	filter := eventlog.Filter{Channel: ch}
	if ch == device.ChannelDoor {
		filter.ExcludeActor = device.ActorUnknown
	}
	ev, err := s.logs.Latest(r.Context(), filter)
	if errors.Is(err, eventlog.ErrNotFound) {
		writeNotFound(w, "no "+string(ch)+" state recorded yet")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev.InZone(s.loc))
}

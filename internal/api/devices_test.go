package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
)

func TestSetLight(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	w := h.do(t, http.MethodPost, "/api/v1/light/2", token, controlRequest{User: "bob", Action: "ON"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Message string         `json:"message"`
		Event   map[string]any `json:"event"`
	}](t, w)
	if resp.Event["action"] != "on" || resp.Event["user"] != "bob" || resp.Event["light_id"] != float64(2) {
		t.Errorf("event = %v", resp.Event)
	}
	if ts, _ := resp.Event["timestamp"].(string); ts != "2026-10-14T16:00:00+07:00" { //nolint:errcheck // checked by comparison
		t.Errorf("timestamp = %v, want display timezone", resp.Event["timestamp"])
	}

	sent := h.pub.all()
	if len(sent) != 1 || sent[0].topic != "homytech/light/2/web" || sent[0].payload != `{"action":"on"}` {
		t.Errorf("published = %+v", sent)
	}

	ev, err := h.store.Latest(context.Background(), eventlog.Filter{Channel: device.ChannelLight})
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if ev.Actor != "bob" || ev.Source != device.SourceWeb || *ev.DeviceID != 2 {
		t.Errorf("logged = %+v", ev)
	}
}

func TestSetLight_Errors(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	tests := []struct {
		name string
		path string
		body any
		want int
		code string
	}{
		{"invalid action", "/api/v1/light/1", controlRequest{Action: "blink"}, http.StatusBadRequest, ErrCodeValidation},
		{"missing action", "/api/v1/light/1", controlRequest{}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown light", "/api/v1/light/9", controlRequest{Action: "on"}, http.StatusNotFound, ErrCodeNotFound},
		{"non-numeric id", "/api/v1/light/kitchen", controlRequest{Action: "on"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid json", "/api/v1/light/1", "{", http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, tt.path, token, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if e := decode[Error](t, w); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}

	if sent := h.pub.all(); len(sent) != 0 {
		t.Errorf("rejected commands should not publish, got %+v", sent)
	}
}

func TestCommand_PublishFailure(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)
	h.pub.err = errors.New("broker unreachable")

	w := h.do(t, http.MethodPost, "/api/v1/door", token, controlRequest{Action: "open"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if e := decode[Error](t, w); e.Code != ErrCodeBadGateway {
		t.Errorf("code = %q", e.Code)
	}

	if _, err := h.store.Latest(context.Background(), eventlog.Filter{Channel: device.ChannelDoor}); !errors.Is(err, eventlog.ErrNotFound) {
		t.Errorf("failed command should not be logged, Latest() error = %v", err)
	}
}

func TestSetDoor_ActorFromToken(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	w := h.do(t, http.MethodPost, "/api/v1/door", token, controlRequest{Action: "open"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	ev, err := h.store.Latest(context.Background(), eventlog.Filter{Channel: device.ChannelDoor})
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if ev.Actor != "Alice" {
		t.Errorf("Actor = %q, want account name", ev.Actor)
	}
}

func TestSetClothesline(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	if w := h.do(t, http.MethodPost, "/api/v1/clothesline", token, controlRequest{Action: "retract"}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/api/v1/clothesline", token, controlRequest{Action: "open"}); w.Code != http.StatusBadRequest {
		t.Errorf("door action on clothesline: status = %d, want 400", w.Code)
	}

	sent := h.pub.all()
	if len(sent) != 1 || sent[0].topic != "homytech/clothesline/web" {
		t.Errorf("published = %+v", sent)
	}
}

func TestSetClotheslineMode(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	w := h.do(t, http.MethodPost, "/api/v1/clothesline/mode", token, modeRequest{Mode: "Manual"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["mode"] != "manual" {
		t.Errorf("mode = %q", body["mode"])
	}
	sent := h.pub.all()
	if len(sent) != 1 || sent[0].topic != "homytech/clothesline-mode/web" || sent[0].payload != `{"mode":"manual"}` {
		t.Errorf("published = %+v", sent)
	}

	if w := h.do(t, http.MethodPost, "/api/v1/clothesline/mode", token, modeRequest{Mode: "turbo"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode: status = %d, want 400", w.Code)
	}
}

func TestSyncState(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	seedEvents(t, h,
		device.Event{Channel: device.ChannelLight, DeviceID: device.LightID(1), Action: "on", Actor: "bob", Source: device.SourceWeb},
		device.Event{Channel: device.ChannelDoor, Action: "close", Actor: "bob", Source: device.SourceRFID},
		device.Event{Channel: device.ChannelDoor, Action: "Tried to force door", Actor: device.ActorUnknown, Source: device.SourceAlertSystem},
	)

	w := h.do(t, http.MethodPost, "/api/v1/sync-state", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body := decode[map[string]any](t, w); body["published"] != float64(3) {
		t.Errorf("published = %v, want 3 (light, door, mode)", body["published"])
	}

	topics := map[string]string{}
	for _, p := range h.pub.all() {
		topics[p.topic] = p.payload
	}
	if topics["homytech/door/web"] != `{"action":"close"}` {
		t.Errorf("door sync = %q, want last non-intrusion action", topics["homytech/door/web"])
	}
	if topics["homytech/clothesline-mode/web"] != `{"mode":"auto"}` {
		t.Errorf("mode sync = %q", topics["homytech/clothesline-mode/web"])
	}
}

// seedEvents appends events one second apart, starting an hour before the clock.
func seedEvents(t *testing.T, h *harness, events ...device.Event) {
	t.Helper()
	base := h.clock.Now().Add(-time.Hour)
	for i, ev := range events {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = base.Add(time.Duration(i) * time.Second)
		}
		if err := h.store.Append(context.Background(), &ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/fanout"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type fakeLog struct {
	mu     sync.Mutex
	events []device.Event
	err    error
}

func (f *fakeLog) Append(_ context.Context, ev *device.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, *ev)
	return nil
}

type handoff struct {
	channel device.Channel
	payload any
}

type fakeBridge struct {
	mu   sync.Mutex
	got  []handoff
	err  error
	logs *fakeLog // when set, records how many log entries existed at handoff
	seen []int
}

func (f *fakeBridge) Handoff(ch device.Channel, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logs != nil {
		f.logs.mu.Lock()
		f.seen = append(f.seen, len(f.logs.events))
		f.logs.mu.Unlock()
	}
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, handoff{channel: ch, payload: payload})
	return nil
}

type countingRecorder struct {
	results map[string]int
}

func (r *countingRecorder) MessageHandled(_, result string) {
	if r.results == nil {
		r.results = make(map[string]int)
	}
	r.results[result]++
}

type captureTelemetry struct {
	events []device.Event
}

func (c *captureTelemetry) WriteEvent(ev device.Event) {
	c.events = append(c.events, ev)
}

func newTestDispatcher(t *testing.T, log LogStore, bridge Bridge, rec Recorder) *Dispatcher {
	t.Helper()
	d, err := New(Options{
		Topics:   mqtt.NewTopics("homytech"),
		Log:      log,
		Bridge:   bridge,
		Recorder: rec,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Bridge: &fakeBridge{}}); err == nil {
		t.Error("New() without log store: want error")
	}
	if _, err := New(Options{Log: &fakeLog{}}); err == nil {
		t.Error("New() without bridge: want error")
	}
}

func TestHandleMessage_Door(t *testing.T) {
	log := &fakeLog{}
	bridge := &fakeBridge{logs: log}
	d := newTestDispatcher(t, log, bridge, nil)

	if err := d.HandleMessage("homytech/door/iot", []byte(`{"action":"open","user":"alice"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if len(log.events) != 1 {
		t.Fatalf("logged %d events, want 1", len(log.events))
	}
	got := log.events[0]
	if got.Channel != device.ChannelDoor || got.Action != "open" || got.Actor != "alice" || got.Source != device.SourceRFID {
		t.Errorf("logged event = %+v", got)
	}
	if !got.Timestamp.Equal(fixedNow) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixedNow)
	}

	if len(bridge.got) != 1 || bridge.got[0].channel != device.ChannelDoor {
		t.Fatalf("handoffs = %+v, want one on door", bridge.got)
	}
	if ev := bridge.got[0].payload.(device.Event); ev.ID != 1 {
		t.Errorf("forwarded ID = %d, want the logged ID 1", ev.ID)
	}
	if bridge.seen[0] != 1 {
		t.Error("handoff happened before the log write")
	}
}

func TestHandleMessage_DoorDefaults(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantActor  string
		wantAction string
	}{
		{name: "empty object", payload: `{}`, wantActor: "-", wantAction: "-"},
		{name: "actor key", payload: `{"action":"close","actor":"bob"}`, wantActor: "bob", wantAction: "close"},
		{name: "user wins over actor", payload: `{"action":"open","user":"alice","actor":"bob"}`, wantActor: "alice", wantAction: "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &fakeLog{}
			d := newTestDispatcher(t, log, &fakeBridge{}, nil)

			_ = d.HandleMessage("homytech/door/iot", []byte(tt.payload))

			if len(log.events) != 1 {
				t.Fatalf("logged %d events, want 1", len(log.events))
			}
			if log.events[0].Actor != tt.wantActor || log.events[0].Action != tt.wantAction {
				t.Errorf("actor=%q action=%q, want %q %q", log.events[0].Actor, log.events[0].Action, tt.wantActor, tt.wantAction)
			}
		})
	}
}

func TestHandleMessage_Clothesline(t *testing.T) {
	log := &fakeLog{}
	bridge := &fakeBridge{}
	d := newTestDispatcher(t, log, bridge, nil)

	_ = d.HandleMessage("homytech/clothesline/iot", []byte(`{"action":"retract"}`))

	if len(log.events) != 1 {
		t.Fatalf("logged %d events, want 1", len(log.events))
	}
	got := log.events[0]
	if got.Actor != device.ActorSystem || got.Source != device.SourceRainSensor || got.Action != "retract" {
		t.Errorf("logged event = %+v", got)
	}
	if len(bridge.got) != 1 || bridge.got[0].channel != device.ChannelClothesline {
		t.Errorf("handoffs = %+v, want one on clothesline", bridge.got)
	}
}

func TestHandleMessage_Alert(t *testing.T) {
	log := &fakeLog{}
	bridge := &fakeBridge{}
	d := newTestDispatcher(t, log, bridge, nil)

	_ = d.HandleMessage("homytech/alert/iot", []byte(`{"action":"forced-entry"}`))

	if len(log.events) != 1 {
		t.Fatalf("logged %d events, want 1", len(log.events))
	}
	got := log.events[0]
	if got.Channel != device.ChannelDoor || got.Actor != device.ActorUnknown || got.Source != device.SourceAlertSystem {
		t.Errorf("logged event = %+v", got)
	}
	if got.Action != "Tried to forced-entry door" {
		t.Errorf("Action = %q", got.Action)
	}

	if len(bridge.got) != 1 || bridge.got[0].channel != device.ChannelAlert {
		t.Fatalf("handoffs = %+v, want exactly one on alert", bridge.got)
	}
	alert, ok := bridge.got[0].payload.(device.Alert)
	if !ok {
		t.Fatalf("payload type = %T, want device.Alert", bridge.got[0].payload)
	}
	if alert.Action == nil || *alert.Action != "forced-entry" || !alert.Timestamp.Equal(fixedNow) {
		t.Errorf("alert = %+v", alert)
	}
}

func TestHandleMessage_AlertWithoutAction(t *testing.T) {
	log := &fakeLog{}
	bridge := &fakeBridge{}
	d := newTestDispatcher(t, log, bridge, nil)

	_ = d.HandleMessage("homytech/alert/iot", []byte(`{}`))

	if len(log.events) != 1 || log.events[0].Action != "Tried to access door" {
		t.Errorf("logged = %+v", log.events)
	}
	if len(bridge.got) != 1 {
		t.Fatalf("handoffs = %+v, want one", bridge.got)
	}
	frame, err := json.Marshal(bridge.got[0].payload)
	if err != nil {
		t.Fatalf("marshal alert: %v", err)
	}
	if !strings.Contains(string(frame), `"action":null`) {
		t.Errorf("alert frame = %s, want null action", frame)
	}
}

func TestHandleMessage_MalformedPayloadDropped(t *testing.T) {
	topics := []string{"homytech/door/iot", "homytech/clothesline/iot", "homytech/alert/iot"}
	payloads := []string{`{"action":`, `not json`, `["open"]`, `"open"`, ``, `null`, ` null `, `true`, `42`}

	for _, topic := range topics {
		for _, p := range payloads {
			t.Run(topic+"/"+p, func(t *testing.T) {
				log := &fakeLog{}
				bridge := &fakeBridge{}
				rec := &countingRecorder{}
				d := newTestDispatcher(t, log, bridge, rec)

				if err := d.HandleMessage(topic, []byte(p)); err != nil {
					t.Errorf("HandleMessage() error = %v, want nil", err)
				}
				if len(log.events) != 0 || len(bridge.got) != 0 {
					t.Errorf("logged=%d handoffs=%d, want none", len(log.events), len(bridge.got))
				}
				if rec.results[ResultDecodeError] != 1 {
					t.Errorf("results = %v, want one decode_error", rec.results)
				}
			})
		}
	}
}

func TestHandleMessage_UnknownTopicIgnored(t *testing.T) {
	log := &fakeLog{}
	bridge := &fakeBridge{}
	rec := &countingRecorder{}
	d := newTestDispatcher(t, log, bridge, rec)

	// Light state is command-driven only.
	_ = d.HandleMessage("homytech/light/1/iot", []byte(`{"action":"on"}`))

	if len(log.events) != 0 || len(bridge.got) != 0 {
		t.Errorf("logged=%d handoffs=%d, want none", len(log.events), len(bridge.got))
	}
	if rec.results[ResultUnknownTopic] != 1 {
		t.Errorf("results = %v", rec.results)
	}
}

func TestHandleMessage_LogFailureStillForwards(t *testing.T) {
	log := &fakeLog{err: errors.New("database is locked")}
	bridge := &fakeBridge{}
	rec := &countingRecorder{}
	d := newTestDispatcher(t, log, bridge, rec)

	_ = d.HandleMessage("homytech/clothesline/iot", []byte(`{"action":"extend"}`))

	if len(bridge.got) != 1 {
		t.Errorf("handoffs = %d, want 1 despite log failure", len(bridge.got))
	}
	if rec.results[ResultAccepted] != 1 {
		t.Errorf("results = %v", rec.results)
	}
}

func TestHandleMessage_RefusedHandoffSwallowed(t *testing.T) {
	log := &fakeLog{}
	d := newTestDispatcher(t, log, &fakeBridge{err: fanout.ErrLoopSaturated}, nil)

	if err := d.HandleMessage("homytech/door/iot", []byte(`{"action":"open"}`)); err != nil {
		t.Errorf("HandleMessage() error = %v, want nil", err)
	}
	if len(log.events) != 1 {
		t.Errorf("logged %d events, want 1", len(log.events))
	}
}

func TestHandleMessage_Telemetry(t *testing.T) {
	tel := &captureTelemetry{}
	d, err := New(Options{Log: &fakeLog{}, Bridge: &fakeBridge{}, Telemetry: tel})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = d.HandleMessage("homytech/door/iot", []byte(`{"action":"open"}`))
	_ = d.HandleMessage("homytech/door/iot", []byte(`garbage`))

	if len(tel.events) != 1 {
		t.Errorf("telemetry events = %d, want 1", len(tel.events))
	}
}

func TestHandleMessage_CustomPrefix(t *testing.T) {
	log := &fakeLog{}
	d, err := New(Options{Topics: mqtt.NewTopics("site7"), Log: log, Bridge: &fakeBridge{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = d.HandleMessage("homytech/door/iot", []byte(`{"action":"open"}`))
	_ = d.HandleMessage("site7/door/iot", []byte(`{"action":"open"}`))

	if len(log.events) != 1 {
		t.Errorf("logged %d events, want only the site7 one", len(log.events))
	}
	if got := d.Topics(); len(got) != 3 || got[0] != "site7/door/iot" {
		t.Errorf("Topics() = %v", got)
	}
}

// recordingSubscriber collects broadcast frames.
type recordingSubscriber struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSubscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return nil
}

func (s *recordingSubscriber) Close() error { return nil }

func (s *recordingSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestHandleMessage_ThroughHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := fanout.NewLoop(16, nil)
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	hub := fanout.NewHub(loop, fanout.HubOptions{})
	doorSub, alertSub := &recordingSubscriber{}, &recordingSubscriber{}
	if err := hub.Register(device.ChannelDoor, doorSub); err != nil {
		t.Fatalf("Register(door) error = %v", err)
	}
	if err := hub.Register(device.ChannelAlert, alertSub); err != nil {
		t.Fatalf("Register(alert) error = %v", err)
	}

	d := newTestDispatcher(t, &fakeLog{}, hub, nil)
	_ = d.HandleMessage("homytech/door/iot", []byte(`{"action":"open","user":"alice"}`))
	_ = d.HandleMessage("homytech/alert/iot", []byte(`{"action":"forced-entry"}`))

	// Do runs after every previously submitted task.
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if doorSub.count() != 1 || alertSub.count() != 1 {
		t.Fatalf("door=%d alert=%d frames, want 1 each", doorSub.count(), alertSub.count())
	}

	var frame map[string]any
	if err := json.Unmarshal(alertSub.frames[0], &frame); err != nil {
		t.Fatalf("unmarshal alert frame: %v", err)
	}
	if frame["action"] != "forced-entry" || frame["timestamp"] == nil {
		t.Errorf("alert frame = %v", frame)
	}
}

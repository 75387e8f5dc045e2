package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
	"github.com/nerrad567/homytech-core/internal/infrastructure/database"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homytech-core/migrations"
)

var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type sentCommand struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
	// failTopic fails only publishes on this topic when set.
	failTopic string
}

func (f *fakePublisher) Publish(topic string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.failTopic == "" || f.failTopic == topic) {
		return f.err
	}
	data, _ := json.Marshal(message) //nolint:errcheck // Test payloads always encode
	f.sent = append(f.sent, sentCommand{topic: topic, payload: string(data)})
	return nil
}

type fakeBridge struct {
	mu  sync.Mutex
	got []device.Event
}

func (f *fakeBridge) Handoff(_ device.Channel, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, payload.(device.Event))
	return nil
}

type fakeTelemetry struct {
	mu  sync.Mutex
	got []device.Event
}

func (f *fakeTelemetry) WriteEvent(ev device.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
}

func newTestStore(t *testing.T) *eventlog.SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return eventlog.NewSQLiteStore(db.DB)
}

type fixture struct {
	svc    *Service
	pub    *fakePublisher
	bridge *fakeBridge
	telem  *fakeTelemetry
	store  *eventlog.SQLiteStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		pub:    &fakePublisher{},
		bridge: &fakeBridge{},
		telem:  &fakeTelemetry{},
		store:  newTestStore(t),
	}
	svc, err := NewService(Options{
		Publisher: f.pub,
		Store:     f.store,
		Bridge:    f.bridge,
		Telemetry: f.telem,
		Topics:    mqtt.NewTopics("homytech"),
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

func (f fixture) logged(t *testing.T, ch device.Channel) []device.Event {
	t.Helper()
	res, err := f.store.Query(context.Background(), eventlog.Filter{Channel: ch})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return res.Logs
}

func TestSetLight(t *testing.T) {
	f := newFixture(t)

	ev, err := f.svc.SetLight(context.Background(), 2, "ON", "alice")
	if err != nil {
		t.Fatalf("SetLight() error = %v", err)
	}

	if len(f.pub.sent) != 1 || f.pub.sent[0].topic != "homytech/light/2/web" || f.pub.sent[0].payload != `{"action":"on"}` {
		t.Errorf("sent = %+v", f.pub.sent)
	}
	if ev.ID == 0 || ev.Action != "on" || *ev.DeviceID != 2 || ev.Source != device.SourceWeb || !ev.Timestamp.Equal(fixedNow) {
		t.Errorf("event = %+v", ev)
	}

	logs := f.logged(t, device.ChannelLight)
	if len(logs) != 1 || logs[0].Actor != "alice" {
		t.Errorf("logged = %+v", logs)
	}
	if len(f.bridge.got) != 1 || f.bridge.got[0].ID != ev.ID {
		t.Errorf("broadcast = %+v", f.bridge.got)
	}
	if len(f.telem.got) != 1 || f.telem.got[0].ID != ev.ID {
		t.Errorf("telemetry = %+v", f.telem.got)
	}
}

func TestSetLight_Validation(t *testing.T) {
	tests := []struct {
		name   string
		id     int
		action string
		want   error
	}{
		{name: "unknown light", id: 4, action: "on", want: device.ErrUnknownLight},
		{name: "bad action", id: 1, action: "dim", want: device.ErrInvalidAction},
		{name: "door action on light", id: 1, action: "open", want: device.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			if _, err := f.svc.SetLight(context.Background(), tt.id, tt.action, "alice"); !errors.Is(err, tt.want) {
				t.Errorf("SetLight() error = %v, want %v", err, tt.want)
			}
			if len(f.pub.sent) != 0 || len(f.bridge.got) != 0 {
				t.Errorf("sent=%d broadcast=%d, want nothing", len(f.pub.sent), len(f.bridge.got))
			}
		})
	}
}

func TestSetDoor_PublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = mqtt.ErrNotConnected

	_, err := f.svc.SetDoor(context.Background(), "open", "alice")
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("SetDoor() error = %v, want ErrPublishFailed wrapping ErrNotConnected", err)
	}
	if logs := f.logged(t, device.ChannelDoor); len(logs) != 0 {
		t.Errorf("logged = %+v, want nothing", logs)
	}
	if len(f.bridge.got) != 0 {
		t.Errorf("broadcast = %+v, want nothing", f.bridge.got)
	}
}

func TestSetDoorAndClothesline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SetDoor(ctx, "Close", "bob"); err != nil {
		t.Fatalf("SetDoor() error = %v", err)
	}
	if _, err := f.svc.SetClothesline(ctx, "extend", "bob"); err != nil {
		t.Fatalf("SetClothesline() error = %v", err)
	}
	if _, err := f.svc.SetClothesline(ctx, "open", "bob"); !errors.Is(err, device.ErrInvalidAction) {
		t.Errorf("SetClothesline(open) error = %v, want ErrInvalidAction", err)
	}

	want := []sentCommand{
		{topic: "homytech/door/web", payload: `{"action":"close"}`},
		{topic: "homytech/clothesline/web", payload: `{"action":"extend"}`},
	}
	if len(f.pub.sent) != len(want) {
		t.Fatalf("sent = %+v", f.pub.sent)
	}
	for i := range want {
		if f.pub.sent[i] != want[i] {
			t.Errorf("sent[%d] = %+v, want %+v", i, f.pub.sent[i], want[i])
		}
	}
	if len(f.logged(t, device.ChannelDoor)) != 1 || len(f.logged(t, device.ChannelClothesline)) != 1 {
		t.Error("expected one door and one clothesline log entry")
	}
}

func TestSetClotheslineMode(t *testing.T) {
	f := newFixture(t)

	mode, err := f.svc.SetClotheslineMode(context.Background(), "MANUAL")
	if err != nil {
		t.Fatalf("SetClotheslineMode() error = %v", err)
	}
	if mode != "manual" {
		t.Errorf("mode = %q", mode)
	}
	if len(f.pub.sent) != 1 || f.pub.sent[0].payload != `{"mode":"manual"}` {
		t.Errorf("sent = %+v", f.pub.sent)
	}
	if len(f.bridge.got) != 0 {
		t.Error("mode change was broadcast")
	}

	if _, err := f.svc.SetClotheslineMode(context.Background(), "sometimes"); !errors.Is(err, device.ErrInvalidMode) {
		t.Errorf("error = %v, want ErrInvalidMode", err)
	}
}

func TestSyncState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := []device.Event{
		{Channel: device.ChannelLight, DeviceID: device.LightID(1), Action: "on", Actor: "a", Source: "web", Timestamp: fixedNow.Add(-3 * time.Hour)},
		{Channel: device.ChannelLight, DeviceID: device.LightID(1), Action: "off", Actor: "a", Source: "web", Timestamp: fixedNow.Add(-2 * time.Hour)},
		{Channel: device.ChannelLight, DeviceID: device.LightID(3), Action: "on", Actor: "a", Source: "web", Timestamp: fixedNow.Add(-time.Hour)},
		{Channel: device.ChannelDoor, Action: "close", Actor: "a", Source: "RFID", Timestamp: fixedNow.Add(-time.Hour)},
		{Channel: device.ChannelDoor, Action: "Tried to open door", Actor: device.ActorUnknown, Source: device.SourceAlertSystem, Timestamp: fixedNow.Add(-time.Minute)},
	}
	for i := range seed {
		if err := f.store.Append(ctx, &seed[i]); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	res, err := f.svc.SyncState(ctx)
	if err != nil {
		t.Fatalf("SyncState() error = %v", err)
	}
	if res.Published != 4 || res.Failed != 0 {
		t.Errorf("result = %+v, want 4 published", res)
	}

	want := map[string]string{
		"homytech/light/1/web":          `{"action":"off"}`,
		"homytech/light/3/web":          `{"action":"on"}`,
		"homytech/door/web":             `{"action":"close"}`,
		"homytech/clothesline-mode/web": `{"mode":"auto"}`,
	}
	for _, c := range f.pub.sent {
		if want[c.topic] != c.payload {
			t.Errorf("sent %s %s, want %s", c.topic, c.payload, want[c.topic])
		}
	}
	if len(f.bridge.got) != 0 {
		t.Error("sync state broadcast events")
	}
}

func TestSyncState_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker busy")
	f.pub.failTopic = "homytech/clothesline-mode/web"

	ev := device.Event{Channel: device.ChannelClothesline, Action: "retract", Actor: "System", Source: device.SourceRainSensor}
	if err := f.store.Append(context.Background(), &ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	res, err := f.svc.SyncState(context.Background())
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("SyncState() error = %v, want ErrPublishFailed", err)
	}
	if res.Published != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1 published 1 failed", res)
	}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(Options{Store: newTestStore(t), Bridge: &fakeBridge{}}); err == nil {
		t.Error("NewService() without publisher: want error")
	}
}

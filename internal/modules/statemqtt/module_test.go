package statemqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/core"
	"github.com/nowdeck/nowdeck/internal/ports"
	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

func TestNewModuleRequiresBroker(t *testing.T) {
	_, err := NewModule(zap.NewNop(), Config{}, nil)
	if err == nil {
		t.Fatalf("expected error without broker url")
	}
}

func TestNewModuleDefaults(t *testing.T) {
	module, err := NewModule(zap.NewNop(), Config{BrokerURL: "mqtt://127.0.0.1:1883"}, nil)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	if module.config.TopicBase != DefaultTopicBase {
		t.Fatalf("expected default topic base, got %s", module.config.TopicBase)
	}
	if module.config.ClientID == "" {
		t.Fatalf("expected default client id")
	}
}

func TestTopics(t *testing.T) {
	if TopicTrack("nowdeck/v1") != "nowdeck/v1/track" {
		t.Fatalf("unexpected track topic")
	}
	if TopicControls("nowdeck/v1") != "nowdeck/v1/controls" {
		t.Fatalf("unexpected controls topic")
	}
	if TopicTimeline("nowdeck/v1") != "nowdeck/v1/timeline" {
		t.Fatalf("unexpected timeline topic")
	}
	if TopicCmd("nowdeck/v1") != "nowdeck/v1/cmd" {
		t.Fatalf("unexpected cmd topic")
	}
}

func TestDispatchMapsCommands(t *testing.T) {
	session, ch := openSession(t)

	for _, tc := range []struct {
		command string
		event   string
	}{
		{"play_pause", nowplay.EventTogglePlayPause},
		{"next", nowplay.EventNextTrack},
		{"prev", nowplay.EventPrevTrack},
		{"toggle_shuffle", nowplay.EventToggleShuffle},
		{"cycle_repeat", nowplay.EventSetRepeatMode},
		{"seek:42000", nowplay.EventSeekTrack},
	} {
		if err := Dispatch(session, tc.command); err != nil {
			t.Fatalf("dispatch %q: %v", tc.command, err)
		}
		session.Snapshot() // barrier
		if ch.count(tc.event) != 1 {
			t.Fatalf("command %q: expected one %s emission, got %d", tc.command, tc.event, ch.count(tc.event))
		}
	}
}

func TestDispatchRejectsUnknownCommands(t *testing.T) {
	session, _ := openSession(t)

	for _, command := range []string{"", "stop", "seek:", "seek:abc", "seek:-5"} {
		if err := Dispatch(session, command); err == nil {
			t.Fatalf("expected error for %q", command)
		}
	}
}

type recordChannel struct {
	mu        sync.Mutex
	handlers  map[string]ports.Handler
	onConnect func()
	emitted   []string
}

func (r *recordChannel) Connect(ctx context.Context) error {
	r.mu.Lock()
	fn := r.onConnect
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (r *recordChannel) On(event string, handler ports.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = handler
}

func (r *recordChannel) OnConnect(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnect = fn
}

func (r *recordChannel) OnDisconnect(func()) {}

func (r *recordChannel) Emit(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = append(r.emitted, event)
	return nil
}

func (r *recordChannel) Close() error { return nil }

func (r *recordChannel) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.emitted {
		if e == event {
			n++
		}
	}
	return n
}

type realClock struct{}

func (realClock) NowUnix() int64      { return 0 }
func (realClock) NowUnixMilli() int64 { return 0 }

func openSession(t *testing.T) (*core.Session, *recordChannel) {
	t.Helper()
	ch := &recordChannel{handlers: map[string]ports.Handler{}}
	session := core.NewSession(zap.NewNop(), ch, realClock{}, core.Config{})
	t.Cleanup(func() { _ = session.Close() })
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	controls, err := json.Marshal(nowplay.ControlsState{
		ShuffleEnabled:   true,
		RepeatEnabled:    true,
		NextEnabled:      true,
		PrevEnabled:      true,
		PlayPauseEnabled: true,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ch.mu.Lock()
	handler := ch.handlers[nowplay.EventTrackControls]
	ch.mu.Unlock()
	handler(controls)
	session.Snapshot()
	return session, ch
}

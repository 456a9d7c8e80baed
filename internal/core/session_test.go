package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/ports"
	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

type fakeEmission struct {
	event   string
	payload any
}

type fakeChannel struct {
	mu           sync.Mutex
	handlers     map[string]ports.Handler
	onConnect    func()
	onDisconnect func()
	emitted      []fakeEmission
	connectErr   error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string]ports.Handler{}}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.fireConnect()
	return nil
}

func (f *fakeChannel) On(event string, handler ports.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeChannel) OnConnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = fn
}

func (f *fakeChannel) OnDisconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = fn
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, fakeEmission{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) fireConnect() {
	f.mu.Lock()
	fn := f.onConnect
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeChannel) fireDisconnect() {
	f.mu.Lock()
	fn := f.onDisconnect
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f.pushRaw(t, event, raw)
}

func (f *fakeChannel) pushRaw(t *testing.T, event string, raw json.RawMessage) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	if handler == nil {
		t.Fatalf("no handler bound for %s", event)
	}
	handler(raw)
}

func (f *fakeChannel) emissions(event string) []fakeEmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []fakeEmission{}
	for _, emission := range f.emitted {
		if emission.event == event {
			out = append(out, emission)
		}
	}
	return out
}

type stubClock struct{}

func (stubClock) NowUnix() int64      { return time.Now().Unix() }
func (stubClock) NowUnixMilli() int64 { return time.Now().UnixMilli() }

func newTestSession(t *testing.T, ch ports.Channel, cfg Config) *Session {
	t.Helper()
	session := NewSession(zap.NewNop(), ch, stubClock{}, cfg)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func openTestSession(t *testing.T, cfg Config) (*Session, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	session := newTestSession(t, ch, cfg)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	return session, ch
}

func someControls() nowplay.ControlsState {
	return nowplay.ControlsState{
		ShuffleEnabled:   true,
		RepeatEnabled:    true,
		NextEnabled:      true,
		PrevEnabled:      true,
		PlayPauseEnabled: true,
		RepeatMode:       nowplay.RepeatNone,
		Playing:          true,
	}
}

func TestConnectRequestsMediaDetailsOncePerTransition(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	session.Snapshot() // barrier
	if got := len(ch.emissions(nowplay.EventGetMediaDetails)); got != 1 {
		t.Fatalf("expected 1 request after connect, got %d", got)
	}

	ch.fireDisconnect()
	ch.fireConnect()
	session.Snapshot()
	if got := len(ch.emissions(nowplay.EventGetMediaDetails)); got != 2 {
		t.Fatalf("expected 2 requests after reconnect, got %d", got)
	}
}

func TestOpenFailureReportsDisconnected(t *testing.T) {
	ch := newFakeChannel()
	ch.connectErr = context.DeadlineExceeded
	session := newTestSession(t, ch, Config{})
	if err := session.Open(context.Background()); err == nil {
		t.Fatalf("expected connect error")
	}
	if state := session.Snapshot().Conn; state != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", state)
	}
}

func TestDisabledIntentEmitsNothing(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	controls := someControls()
	controls.PlayPauseEnabled = false
	ch.push(t, nowplay.EventTrackControls, controls)

	session.PlayPause()
	session.Snapshot()
	if got := len(ch.emissions(nowplay.EventTogglePlayPause)); got != 0 {
		t.Fatalf("expected zero emissions, got %d", got)
	}
}

func TestSeekGestureScenario(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "t", Artist: "a", DurationMS: 240000})
	ch.push(t, nowplay.EventTrackTimeline, nowplay.TimelinePayload{ProgressMS: 1000})

	view := session.Snapshot()
	if view.Display.Kind != DisplayAuthoritative || view.Display.PositionMS != 1000 {
		t.Fatalf("expected authoritative 1000, got %+v", view.Display)
	}
	if view.DurationMS != 240000 {
		t.Fatalf("expected duration 240000, got %d", view.DurationMS)
	}

	session.BeginSeek(5000)
	ch.push(t, nowplay.EventTrackTimeline, nowplay.TimelinePayload{ProgressMS: 1200})

	view = session.Snapshot()
	if view.Display.Kind != DisplayOverridden || view.Display.PositionMS != 5000 {
		t.Fatalf("push mid-gesture moved the display: %+v", view.Display)
	}

	session.UpdateSeek(7000)
	session.CommitSeek()

	view = session.Snapshot()
	seeks := ch.emissions(nowplay.EventSeekTrack)
	if len(seeks) != 1 {
		t.Fatalf("expected exactly one seek emission, got %d", len(seeks))
	}
	if payload := seeks[0].payload.(nowplay.SeekPayload); payload.PositionMS != 7000 {
		t.Fatalf("expected committed position 7000, got %d", payload.PositionMS)
	}
	if view.Display.Kind != DisplayAuthoritative || view.Display.PositionMS != 1200 {
		t.Fatalf("expected return to authoritative 1200, got %+v", view.Display)
	}
}

func TestOverrideWinsOverAnyPushSequence(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	session.BeginSeek(5000)
	for _, progress := range []int64{100, 90000, 0, 5500, 3} {
		ch.push(t, nowplay.EventTrackTimeline, nowplay.TimelinePayload{ProgressMS: progress})
		view := session.Snapshot()
		if view.Display.Kind != DisplayOverridden || view.Display.PositionMS != 5000 {
			t.Fatalf("push %d leaked into display: %+v", progress, view.Display)
		}
	}
}

func TestMalformedPushRetainsPreviousSnapshot(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "first", Artist: "a", DurationMS: 1000})
	ch.pushRaw(t, nowplay.EventTrackInfo, json.RawMessage(`{"title":"bad","duration":-3}`))
	ch.pushRaw(t, nowplay.EventTrackTimeline, json.RawMessage(`{"progress":"NaN"}`))

	view := session.Snapshot()
	if view.Track == nil || view.Track.Title != "first" {
		t.Fatalf("malformed push clobbered the store: %+v", view.Track)
	}
}

func TestTrackInfoFullReplace(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "one", Artist: "a", Album: "album", DurationMS: 1000})
	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "two", Artist: "b", DurationMS: 2000})

	view := session.Snapshot()
	if view.Track.Album != "" {
		t.Fatalf("old album survived the replace: %q", view.Track.Album)
	}
	if view.Track.Title != "two" || view.DurationMS != 2000 {
		t.Fatalf("unexpected snapshot %+v", view.Track)
	}
}

func TestRepeatCycleIntentNotOptimistic(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	controls := someControls()
	controls.RepeatMode = nowplay.RepeatList
	ch.push(t, nowplay.EventTrackControls, controls)

	session.CycleRepeat()
	view := session.Snapshot()

	sets := ch.emissions(nowplay.EventSetRepeatMode)
	if len(sets) != 1 {
		t.Fatalf("expected one set_repeat_mode, got %d", len(sets))
	}
	if mode := sets[0].payload.(nowplay.RepeatMode); mode != nowplay.RepeatTrack {
		t.Fatalf("expected track, got %s", mode)
	}
	// Displayed value only changes on the next push.
	if view.Controls.RepeatMode != nowplay.RepeatList {
		t.Fatalf("repeat mode updated optimistically: %s", view.Controls.RepeatMode)
	}
}

func TestDisconnectRetainsSnapshots(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "keep", Artist: "a", DurationMS: 1})
	ch.fireDisconnect()

	view := session.Snapshot()
	if view.Conn != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", view.Conn)
	}
	if view.Track == nil || view.Track.Title != "keep" {
		t.Fatalf("disconnect blanked the store")
	}
}

func TestPresenceIdleAndReactivation(t *testing.T) {
	session, _ := openTestSession(t, Config{IdleWindow: 40 * time.Millisecond})

	if !session.Snapshot().Active {
		t.Fatalf("expected active on start")
	}

	waitForView(t, session, func(v View) bool { return !v.Active })

	session.Touch(InputPointerMove)
	waitForView(t, session, func(v View) bool { return v.Active })

	waitForView(t, session, func(v View) bool { return !v.Active })
}

func TestUpdatesCloseOnSessionClose(t *testing.T) {
	session, _ := openTestSession(t, Config{})
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-session.Updates():
		if ok {
			return // a buffered view may still drain first
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("updates channel not closed")
	}
}

func TestUpdatesCarryCompleteViews(t *testing.T) {
	session, ch := openTestSession(t, Config{})

	ch.push(t, nowplay.EventTrackInfo, nowplay.TrackInfo{Title: "t", Artist: "a", DurationMS: 100})
	session.Snapshot()

	select {
	case view := <-session.Updates():
		if view.Track == nil {
			t.Fatalf("update carried incomplete view")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update received")
	}
}

func waitForView(t *testing.T, session *Session, cond func(View) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(session.Snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("view condition not met in time")
}

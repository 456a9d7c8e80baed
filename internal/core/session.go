// Package core owns the live connection to the media host and derives
// the single coherent view the presentation layer renders: server
// pushes are merged with locally-optimistic gestures on one serialized
// event loop, so store state never needs a lock.
package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/ports"
	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns a readable state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalJSON encodes the state as its name.
func (s ConnState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Config configures a session.
type Config struct {
	// IdleWindow is the presence debounce window. Zero means 5s.
	IdleWindow time.Duration
}

// View is a complete, self-contained snapshot of what the UI should
// show right now. Track and Controls are nil before their first push.
type View struct {
	Conn              ConnState              `json:"conn"`
	Track             *nowplay.TrackInfo     `json:"track,omitempty"`
	Controls          *nowplay.ControlsState `json:"controls,omitempty"`
	Display           Display                `json:"display"`
	DurationMS        int64                  `json:"durationMs"`
	Theme             Theme                  `json:"theme"`
	Active            bool                   `json:"active"`
	LastInteractionMS int64                  `json:"lastInteractionMs"`
}

// Session owns one channel to the media host for its lifetime: it
// binds one handler per inbound event, requests a fresh snapshot on
// every transition into connected, and serializes all inbound events
// and user intents onto one mailbox goroutine. Close releases the
// timers, the handlers, and the channel together.
type Session struct {
	log   *zap.Logger
	ch    ports.Channel
	clock ports.Clock

	mailbox chan func()
	done    chan struct{}
	closed  sync.Once

	conn     ConnState
	track    *TrackStore
	controls *ControlsStore
	timeline *Timeline
	presence *Presence

	updates chan View
}

// NewSession creates a session bound to the given channel. Open must
// be called exactly once to start it.
func NewSession(log *zap.Logger, ch ports.Channel, clk ports.Clock, cfg Config) *Session {
	if cfg.IdleWindow == 0 {
		cfg.IdleWindow = 5 * time.Second
	}

	s := &Session{
		log:     log,
		ch:      ch,
		clock:   clk,
		mailbox: make(chan func(), 128),
		done:    make(chan struct{}),
		updates: make(chan View, 1),
	}
	s.track = newTrackStore(log)
	s.controls = newControlsStore(log, s.emit)
	s.timeline = newTimeline(log, s.emit)
	s.presence = newPresence(log, clk, cfg.IdleWindow, s.post)
	s.presence.onChange = s.publish
	s.bind()
	return s
}

// Open starts the mailbox loop and dials the host. A failed first dial
// is returned to the caller; after a successful dial the channel owns
// reconnection.
func (s *Session) Open(ctx context.Context) error {
	go s.loop()
	s.post(func() {
		s.conn = StateConnecting
		s.publish()
	})

	if err := s.ch.Connect(ctx); err != nil {
		s.post(func() {
			s.conn = StateDisconnected
			s.publish()
		})
		return err
	}
	return nil
}

// Close tears the session down: idle timer first, then the mailbox
// (posted work is rejected from here on, so no handler can fire
// against a closed session), then the channel. Idempotent.
func (s *Session) Close() error {
	var err error
	s.closed.Do(func() {
		s.presence.Stop()
		close(s.done)
		err = s.ch.Close()
	})
	return err
}

// Snapshot returns the current view, serialized through the mailbox.
func (s *Session) Snapshot() View {
	reply := make(chan View, 1)
	if !s.post(func() { reply <- s.view() }) {
		return View{Conn: StateDisconnected}
	}
	select {
	case view := <-reply:
		return view
	case <-s.done:
		return View{Conn: StateDisconnected}
	}
}

// Updates returns a channel carrying the latest complete view after
// each applied event. Slow readers only ever miss intermediate views,
// never fields: every view is whole. Closed when the session closes.
func (s *Session) Updates() <-chan View {
	return s.updates
}

// Touch records a qualifying user input for the presence signal.
func (s *Session) Touch(kind InputKind) {
	s.presence.Touch(kind)
}

// PlayPause dispatches the play/pause intent.
func (s *Session) PlayPause() {
	s.post(s.controls.PlayPause)
}

// Next dispatches the next-track intent.
func (s *Session) Next() {
	s.post(s.controls.Next)
}

// Previous dispatches the previous-track intent.
func (s *Session) Previous() {
	s.post(s.controls.Previous)
}

// ToggleShuffle dispatches the shuffle intent.
func (s *Session) ToggleShuffle() {
	s.post(s.controls.ToggleShuffle)
}

// CycleRepeat dispatches the repeat-cycle intent.
func (s *Session) CycleRepeat() {
	s.post(s.controls.CycleRepeat)
}

// BeginSeek starts a seek gesture at the given position.
func (s *Session) BeginSeek(positionMS int64) {
	s.post(func() {
		s.timeline.BeginSeek(positionMS)
		s.publish()
	})
}

// UpdateSeek moves the in-flight seek gesture.
func (s *Session) UpdateSeek(positionMS int64) {
	s.post(func() {
		s.timeline.UpdateSeek(positionMS)
		s.publish()
	})
}

// CommitSeek ends the gesture and emits the committed position.
func (s *Session) CommitSeek() {
	s.post(func() {
		s.timeline.CommitSeek()
		s.publish()
	})
}

// AbandonSeek ends the gesture without emitting.
func (s *Session) AbandonSeek() {
	s.post(func() {
		s.timeline.AbandonSeek()
		s.publish()
	})
}

func (s *Session) bind() {
	s.ch.On(nowplay.EventTrackInfo, func(data json.RawMessage) {
		s.post(func() { s.applyTrackInfo(data) })
	})
	s.ch.On(nowplay.EventTrackControls, func(data json.RawMessage) {
		s.post(func() { s.applyControls(data) })
	})
	s.ch.On(nowplay.EventTrackTimeline, func(data json.RawMessage) {
		s.post(func() { s.applyTimeline(data) })
	})
	s.ch.OnConnect(func() {
		s.post(s.handleConnected)
	})
	s.ch.OnDisconnect(func() {
		s.post(s.handleDisconnected)
	})
}

func (s *Session) loop() {
	defer close(s.updates)
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.mailbox:
			fn()
		}
	}
}

func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	case s.mailbox <- fn:
		return true
	}
}

// handleConnected runs on every transition into connected, including
// reconnects: host-side state may have changed while away, so a fresh
// snapshot is requested each time.
func (s *Session) handleConnected() {
	s.conn = StateConnected
	s.log.Info("connected, requesting media details")
	_ = s.emit(nowplay.EventGetMediaDetails, nil)
	s.publish()
}

// handleDisconnected keeps the last snapshots: stale-but-plausible
// beats blanking the UI, and the reconnect re-request refreshes it.
func (s *Session) handleDisconnected() {
	s.conn = StateDisconnected
	s.log.Info("disconnected")
	s.publish()
}

func (s *Session) applyTrackInfo(data json.RawMessage) {
	info, err := nowplay.DecodeTrackInfo(data)
	if err != nil {
		s.log.Warn("dropping track_info push", zap.Error(err))
		return
	}
	s.track.Apply(info)
	s.timeline.SetDuration(info.DurationMS)
	s.publish()
}

func (s *Session) applyControls(data json.RawMessage) {
	controls, err := nowplay.DecodeControls(data)
	if err != nil {
		s.log.Warn("dropping track_controls push", zap.Error(err))
		return
	}
	s.controls.Apply(controls)
	s.publish()
}

func (s *Session) applyTimeline(data json.RawMessage) {
	timeline, err := nowplay.DecodeTimeline(data)
	if err != nil {
		s.log.Warn("dropping track_timeline push", zap.Error(err))
		return
	}
	s.timeline.ApplyProgress(timeline)
	s.publish()
}

func (s *Session) emit(event string, payload any) error {
	if err := s.ch.Emit(event, payload); err != nil {
		s.log.Warn("emit failed", zap.String("event", event), zap.Error(err))
		return err
	}
	s.log.Debug("emitted", zap.String("event", event))
	return nil
}

func (s *Session) view() View {
	return View{
		Conn:              s.conn,
		Track:             s.track.Current(),
		Controls:          s.controls.Current(),
		Display:           s.timeline.Display(),
		DurationMS:        s.timeline.Duration(),
		Theme:             s.track.Theme(),
		Active:            s.presence.active,
		LastInteractionMS: s.presence.lastMS,
	}
}

func (s *Session) publish() {
	view := s.view()
	for {
		select {
		case s.updates <- view:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

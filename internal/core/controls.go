package core

import (
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// ControlsStore holds the last authoritative controls snapshot and
// dispatches user intents. Each dispatch checks the matching
// availability flag and no-ops when the control is unavailable; before
// the first snapshot everything is unavailable. Repeat and shuffle are
// not updated optimistically — the displayed value only changes when
// the next track_controls push arrives.
type ControlsStore struct {
	log   *zap.Logger
	emit  func(event string, payload any) error
	state *nowplay.ControlsState
}

func newControlsStore(log *zap.Logger, emit func(event string, payload any) error) *ControlsStore {
	return &ControlsStore{log: log, emit: emit}
}

// Apply replaces the snapshot.
func (s *ControlsStore) Apply(controls nowplay.ControlsState) {
	next := controls
	s.state = &next
	s.log.Debug("controls replaced",
		zap.Bool("playing", next.Playing),
		zap.Bool("shuffle", next.Shuffle),
		zap.String("repeat", next.RepeatMode.String()),
	)
}

// Current returns the latest snapshot, nil before the first push.
func (s *ControlsStore) Current() *nowplay.ControlsState {
	return s.state
}

// PlayPause emits toggle_play_pause when the control is available.
func (s *ControlsStore) PlayPause() {
	if !s.allowed(nowplay.EventTogglePlayPause, s.state != nil && s.state.PlayPauseEnabled) {
		return
	}
	_ = s.emit(nowplay.EventTogglePlayPause, nil)
}

// Next emits next_track when the control is available.
func (s *ControlsStore) Next() {
	if !s.allowed(nowplay.EventNextTrack, s.state != nil && s.state.NextEnabled) {
		return
	}
	_ = s.emit(nowplay.EventNextTrack, nil)
}

// Previous emits prev_track when the control is available.
func (s *ControlsStore) Previous() {
	if !s.allowed(nowplay.EventPrevTrack, s.state != nil && s.state.PrevEnabled) {
		return
	}
	_ = s.emit(nowplay.EventPrevTrack, nil)
}

// ToggleShuffle emits toggle_shuffle when the control is available.
func (s *ControlsStore) ToggleShuffle() {
	if !s.allowed(nowplay.EventToggleShuffle, s.state != nil && s.state.ShuffleEnabled) {
		return
	}
	_ = s.emit(nowplay.EventToggleShuffle, nil)
}

// CycleRepeat advances the authoritative repeat mode one step along
// the protocol cycle and emits set_repeat_mode with the result.
func (s *ControlsStore) CycleRepeat() {
	if !s.allowed(nowplay.EventSetRepeatMode, s.state != nil && s.state.RepeatEnabled) {
		return
	}
	_ = s.emit(nowplay.EventSetRepeatMode, s.state.RepeatMode.Next())
}

func (s *ControlsStore) allowed(event string, enabled bool) bool {
	if !enabled {
		s.log.Debug("intent dropped, control unavailable", zap.String("event", event))
		return false
	}
	return true
}

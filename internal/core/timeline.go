package core

import (
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// DisplayKind tags which source owns the displayed position.
type DisplayKind int

const (
	// DisplayAuthoritative shows the last position pushed by the host.
	DisplayAuthoritative DisplayKind = iota
	// DisplayOverridden shows the in-flight seek gesture's position.
	DisplayOverridden
)

// Display is the tagged position shown to the presentation layer.
type Display struct {
	Kind       DisplayKind `json:"kind"`
	PositionMS int64       `json:"positionMs"`
}

// Timeline reconciles authoritative progress pushes with a local seek
// gesture. While a gesture is in flight the override owns the display;
// pushes still land on the authoritative value but can never move the
// slider out from under the user's finger. The override pointer is the
// latch: non-nil means Seeking, nil means Idle.
type Timeline struct {
	log  *zap.Logger
	emit func(event string, payload any) error

	progressMS int64
	durationMS int64
	override   *int64
}

func newTimeline(log *zap.Logger, emit func(event string, payload any) error) *Timeline {
	return &Timeline{log: log, emit: emit}
}

// ApplyProgress records an authoritative progress push.
func (t *Timeline) ApplyProgress(payload nowplay.TimelinePayload) {
	t.progressMS = payload.ProgressMS
}

// SetDuration records the authoritative duration. Duration arrives on
// track_info, not on timeline pushes, and is never overridden locally.
func (t *Timeline) SetDuration(ms int64) {
	t.durationMS = ms
}

// Duration returns the authoritative duration.
func (t *Timeline) Duration() int64 {
	return t.durationMS
}

// Seeking reports whether a gesture is in flight.
func (t *Timeline) Seeking() bool {
	return t.override != nil
}

// Display returns the position the UI must show right now.
func (t *Timeline) Display() Display {
	if t.override != nil {
		return Display{Kind: DisplayOverridden, PositionMS: *t.override}
	}
	return Display{Kind: DisplayAuthoritative, PositionMS: t.progressMS}
}

// BeginSeek starts a gesture at the given position. Nothing is sent;
// only the commit emits.
func (t *Timeline) BeginSeek(positionMS int64) {
	value := positionMS
	t.override = &value
}

// UpdateSeek moves an in-flight gesture. Ignored when no gesture is in
// progress.
func (t *Timeline) UpdateSeek(positionMS int64) {
	if t.override == nil {
		t.log.Debug("seek update without active gesture", zap.Int64("position_ms", positionMS))
		return
	}
	value := positionMS
	t.override = &value
}

// CommitSeek ends the gesture: emits exactly one seek_track with the
// last override value and clears the latch synchronously. The host's
// next timeline push is simply trusted.
func (t *Timeline) CommitSeek() {
	if t.override == nil {
		return
	}
	position := *t.override
	t.override = nil
	_ = t.emit(nowplay.EventSeekTrack, nowplay.SeekPayload{PositionMS: position})
}

// AbandonSeek ends the gesture without emitting anything.
func (t *Timeline) AbandonSeek() {
	t.override = nil
}

package core

import (
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// TrackStore holds the last authoritative track snapshot. Every
// track_info push replaces the whole value; nothing is merged. The
// stored snapshot is never mutated after the swap, so returned
// pointers stay valid.
type TrackStore struct {
	log   *zap.Logger
	track *nowplay.TrackInfo
	theme Theme
}

func newTrackStore(log *zap.Logger) *TrackStore {
	return &TrackStore{log: log}
}

// Apply replaces the snapshot and rederives the theme signal.
func (s *TrackStore) Apply(info nowplay.TrackInfo) {
	next := info
	s.track = &next
	s.theme = themeFor(next, s.log)
	s.log.Debug("track replaced",
		zap.String("title", next.Title),
		zap.String("artist", next.Artist),
		zap.Int64("duration_ms", next.DurationMS),
	)
}

// Current returns the latest snapshot, nil before the first push.
func (s *TrackStore) Current() *nowplay.TrackInfo {
	return s.track
}

// Theme returns the derived theme signal.
func (s *TrackStore) Theme() Theme {
	return s.theme
}

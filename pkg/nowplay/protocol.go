// Package nowplay defines the wire protocol spoken between a nowdeck
// client and the media host: a closed set of named JSON events carried
// over a persistent bidirectional channel.
//
// The wire carries no sequence numbers or timestamps. Snapshots are
// applied last-write-wins, so a transport that reorders delivery could
// apply a stale snapshot over a fresher one. Both ends rely on the
// channel preserving order.
package nowplay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client to server events.
const (
	EventGetMediaDetails = "get_media_details"
	EventTogglePlayPause = "toggle_play_pause"
	EventNextTrack       = "next_track"
	EventPrevTrack       = "prev_track"
	EventToggleShuffle   = "toggle_shuffle"
	EventSetRepeatMode   = "set_repeat_mode"
	EventSeekTrack       = "seek_track"
)

// Server to client events.
const (
	EventTrackInfo     = "track_info"
	EventTrackControls = "track_controls"
	EventTrackTimeline = "track_timeline"
)

// Envelope frames one event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode frames an event with an optional payload. A nil payload
// produces an envelope without a data field.
func Encode(event string, payload any) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, errors.New("event is required")
	}

	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a raw frame into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return Envelope{}, errors.New("frame has no event name")
	}
	return env, nil
}

// DecodeTrackInfo parses a track_info payload.
func DecodeTrackInfo(data json.RawMessage) (TrackInfo, error) {
	var info TrackInfo
	if len(data) == 0 {
		return TrackInfo{}, errors.New("track_info payload is empty")
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return TrackInfo{}, fmt.Errorf("decode track_info: %w", err)
	}
	if info.DurationMS < 0 {
		return TrackInfo{}, fmt.Errorf("track_info duration %d is negative", info.DurationMS)
	}
	if info.AccentHue != nil && (*info.AccentHue < 0 || *info.AccentHue >= 360) {
		return TrackInfo{}, fmt.Errorf("track_info accentHue %v out of range", *info.AccentHue)
	}
	return info, nil
}

// DecodeControls parses a track_controls payload.
func DecodeControls(data json.RawMessage) (ControlsState, error) {
	var controls ControlsState
	if len(data) == 0 {
		return ControlsState{}, errors.New("track_controls payload is empty")
	}
	if err := json.Unmarshal(data, &controls); err != nil {
		return ControlsState{}, fmt.Errorf("decode track_controls: %w", err)
	}
	return controls, nil
}

// DecodeTimeline parses a track_timeline payload.
func DecodeTimeline(data json.RawMessage) (TimelinePayload, error) {
	var timeline TimelinePayload
	if len(data) == 0 {
		return TimelinePayload{}, errors.New("track_timeline payload is empty")
	}
	if err := json.Unmarshal(data, &timeline); err != nil {
		return TimelinePayload{}, fmt.Errorf("decode track_timeline: %w", err)
	}
	if timeline.ProgressMS < 0 {
		return TimelinePayload{}, fmt.Errorf("track_timeline progress %d is negative", timeline.ProgressMS)
	}
	return timeline, nil
}

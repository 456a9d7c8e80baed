package nowplay

import "fmt"

// TrackInfo is the authoritative metadata for the loaded track. The
// host always sends a complete snapshot; fields are never patched
// individually. AccentHue is optional on the wire — older hosts derive
// no accent and leave it unset.
type TrackInfo struct {
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Album      string   `json:"album,omitempty"`
	DurationMS int64    `json:"duration"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	AccentHue  *float64 `json:"accentHue,omitempty"`
}

// ControlsState is the authoritative control availability and toggle
// state. Availability flags gate whether the matching intent may be
// dispatched; value fields are independent of them — a disabled
// control may still carry a value.
type ControlsState struct {
	ShuffleEnabled   bool       `json:"shuffleEnabled"`
	RepeatEnabled    bool       `json:"repeatEnabled"`
	NextEnabled      bool       `json:"nextEnabled"`
	PrevEnabled      bool       `json:"prevEnabled"`
	PlayPauseEnabled bool       `json:"playPauseEnabled"`
	Shuffle          bool       `json:"shuffle"`
	RepeatMode       RepeatMode `json:"repeatMode"`
	Playing          bool       `json:"playing"`
}

// TimelinePayload carries an authoritative progress push. Duration is
// not repeated here; it arrives bundled on track_info.
type TimelinePayload struct {
	ProgressMS int64 `json:"progress"`
}

// SeekPayload carries a committed seek position. The host clamps it.
type SeekPayload struct {
	PositionMS int64 `json:"position"`
}

// RepeatMode is the closed repeat enumeration. The zero value is
// RepeatNone.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatList
	RepeatTrack
)

// Cycling order is a protocol contract shared with the host:
// none -> list -> track -> none.
var repeatOrder = [...]RepeatMode{RepeatNone, RepeatList, RepeatTrack}

// Next returns the mode that follows m in the fixed cycling order.
func (m RepeatMode) Next() RepeatMode {
	for i, mode := range repeatOrder {
		if mode == m {
			return repeatOrder[(i+1)%len(repeatOrder)]
		}
	}
	return RepeatNone
}

// String returns the lowercase wire name for the mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatTrack:
		return "track"
	case RepeatList:
		return "list"
	default:
		return "none"
	}
}

// ParseRepeatMode parses a wire name into a mode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "none":
		return RepeatNone, nil
	case "list":
		return RepeatList, nil
	case "track":
		return RepeatTrack, nil
	default:
		return RepeatNone, fmt.Errorf("invalid repeat mode %q", s)
	}
}

// MarshalJSON encodes the mode as its lowercase wire name.
func (m RepeatMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a lowercase wire name.
func (m *RepeatMode) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid repeat mode payload %s", string(data))
	}
	mode, err := ParseRepeatMode(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

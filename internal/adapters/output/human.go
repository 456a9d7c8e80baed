package output

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nowdeck/nowdeck/internal/core"
	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.View:
		_, err := fmt.Fprint(os.Stdout, ViewText(data))
		return err
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

// ViewText renders a view as the multi-line status block shared by the
// one-shot status command and the watch loop.
func ViewText(view core.View) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)

	fmt.Fprintf(tw, "conn\t%s\n", view.Conn)
	if view.Track == nil {
		fmt.Fprintln(tw, "track\t(none)")
	} else {
		fmt.Fprintf(tw, "track\t%s\n", formatTrack(view.Track))
		if view.Track.Album != "" {
			fmt.Fprintf(tw, "album\t%s\n", view.Track.Album)
		}
	}
	fmt.Fprintf(tw, "position\t%s\n", formatPosition(view.Display, view.DurationMS))
	if view.Controls != nil {
		fmt.Fprintf(tw, "playback\t%s\n", formatControls(view.Controls))
	}
	if view.Theme.Valid {
		fmt.Fprintf(tw, "accent\thue %.0f\n", view.Theme.Hue)
	}
	tw.Flush()
	return sb.String()
}

func formatTrack(track *nowplay.TrackInfo) string {
	if track.Artist != "" {
		return fmt.Sprintf("%s - %s", track.Artist, track.Title)
	}
	return track.Title
}

func formatPosition(display core.Display, durationMS int64) string {
	position := formatMS(display.PositionMS)
	if display.Kind == core.DisplayOverridden {
		position += "*"
	}
	if durationMS > 0 {
		return fmt.Sprintf("%s / %s", position, formatMS(durationMS))
	}
	return position
}

func formatControls(controls *nowplay.ControlsState) string {
	state := "paused"
	if controls.Playing {
		state = "playing"
	}
	parts := []string{state}
	if controls.Shuffle {
		parts = append(parts, "shuffle")
	}
	if controls.RepeatMode != nowplay.RepeatNone {
		parts = append(parts, "repeat "+controls.RepeatMode.String())
	}
	return strings.Join(parts, ", ")
}

func formatMS(ms int64) string {
	if ms <= 0 {
		return "0:00"
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

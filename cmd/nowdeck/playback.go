package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func toggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Toggle play/pause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if _, err := waitReady(app); err != nil {
				return err
			}
			app.session.PlayPause()
			app.session.Snapshot()
			return nil
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Skip to the next track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if _, err := waitReady(app); err != nil {
				return err
			}
			app.session.Next()
			app.session.Snapshot()
			return nil
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Skip to the previous track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if _, err := waitReady(app); err != nil {
				return err
			}
			app.session.Previous()
			app.session.Snapshot()
			return nil
		},
	}
}

func shuffleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle",
		Short: "Toggle shuffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if _, err := waitReady(app); err != nil {
				return err
			}
			app.session.ToggleShuffle()
			app.session.Snapshot()
			return nil
		},
	}
}

func repeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repeat",
		Short: "Cycle the repeat mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if _, err := waitReady(app); err != nil {
				return err
			}
			app.session.CycleRepeat()
			app.session.Snapshot()
			return nil
		},
	}
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <position>",
		Short: "Seek to a position (m:ss or seconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			app := fromContext(cmd)
			view, err := waitReady(app)
			if err != nil {
				return err
			}
			if view.DurationMS > 0 && position > view.DurationMS {
				return fmt.Errorf("position beyond track end (%dms)", view.DurationMS)
			}
			app.session.BeginSeek(position)
			app.session.CommitSeek()
			app.session.Snapshot()
			return nil
		},
	}
}

// parsePosition accepts "m:ss" or plain seconds and returns
// milliseconds.
func parsePosition(raw string) (int64, error) {
	if minutes, seconds, ok := strings.Cut(raw, ":"); ok {
		m, err := strconv.ParseInt(minutes, 10, 64)
		if err != nil || m < 0 {
			return 0, fmt.Errorf("bad position %q", raw)
		}
		s, err := strconv.ParseInt(seconds, 10, 64)
		if err != nil || s < 0 || s > 59 {
			return 0, fmt.Errorf("bad position %q", raw)
		}
		return (m*60 + s) * 1000, nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("bad position %q", raw)
	}
	return seconds * 1000, nil
}

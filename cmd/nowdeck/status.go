package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nowdeck/nowdeck/internal/adapters/output"
)

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current playback view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if watch {
				return watchStatus(app)
			}

			// Give the host a moment to deliver the first pushes.
			deadline := time.Now().Add(app.timeout)
			for {
				view := app.session.Snapshot()
				if view.Track != nil || time.Now().After(deadline) {
					return app.printer.Print(view)
				}
				select {
				case <-app.session.Updates():
				case <-time.After(50 * time.Millisecond):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "continuously render view updates")

	return cmd
}

func watchStatus(app *app) error {
	area, err := pterm.DefaultArea.Start(output.ViewText(app.session.Snapshot()))
	if err != nil {
		return err
	}
	defer func() { _ = area.Stop() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	for {
		select {
		case <-stop:
			return nil
		case view, ok := <-app.session.Updates():
			if !ok {
				return nil
			}
			area.Update(output.ViewText(view))
		}
	}
}

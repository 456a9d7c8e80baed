package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/adapters/clock"
	"github.com/nowdeck/nowdeck/internal/adapters/config"
	"github.com/nowdeck/nowdeck/internal/adapters/output"
	"github.com/nowdeck/nowdeck/internal/adapters/wschannel"
	"github.com/nowdeck/nowdeck/internal/core"
)

type app struct {
	session *core.Session
	printer output.Printer
	json    bool
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:   "nowdeck",
		Short: "Now-playing deck CLI",
	}

	var (
		server  string
		timeout time.Duration
		jsonOut bool
		verbose bool
	)

	root.PersistentFlags().StringVarP(&server, "server", "s", "", "media host websocket URL")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if server == "" {
			server = cfg.Server
		}
		if server == "" {
			return errors.New("server is required (set --server or config)")
		}
		if !cmd.Flags().Changed("timeout") && cfg.TimeoutMS > 0 {
			timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
		}

		logger := zap.NewNop()
		if verbose {
			logger, err = zap.NewDevelopment()
			if err != nil {
				return err
			}
		}

		channel, err := wschannel.NewClient(logger, wschannel.Options{URL: server})
		if err != nil {
			return err
		}

		sessionCfg := core.Config{}
		if cfg.IdleMS > 0 {
			sessionCfg.IdleWindow = time.Duration(cfg.IdleMS) * time.Millisecond
		}
		session := core.NewSession(logger, channel, clock.Clock{}, sessionCfg)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := session.Open(ctx); err != nil {
			return err
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{}
		} else {
			printer = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			session: session,
			printer: printer,
			json:    jsonOut,
			timeout: timeout,
		}))
		return nil
	}

	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil {
			_ = app.session.Close()
		}
	}

	root.AddCommand(statusCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(seekCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

// waitReady blocks until the host has delivered the first controls
// snapshot. Intents dispatched before it would be dropped as
// unavailable.
func waitReady(app *app) (core.View, error) {
	deadline := time.Now().Add(app.timeout)
	for {
		view := app.session.Snapshot()
		if view.Controls != nil {
			return view, nil
		}
		if time.Now().After(deadline) {
			return view, errors.New("no controls snapshot from host")
		}
		select {
		case <-app.session.Updates():
		case <-time.After(50 * time.Millisecond):
		}
	}
}

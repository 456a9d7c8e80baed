// Package embeddedmqtt runs a small in-process MQTT broker so the
// state mirror works without an external broker on the network.
package embeddedmqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
}

// Module runs an embedded MQTT broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}

	server, err := newServer(cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg}, nil
}

// Run starts the embedded broker and serves until the context ends.
func (m *Module) Run(ctx context.Context) error {
	listener := listeners.NewTCP(listeners.Config{ID: "tcp-embedded", Address: m.config.Listen})
	if err := m.server.AddListener(listener); err != nil {
		return err
	}

	m.log.Info("embedded broker listening", zap.String("addr", m.config.Listen))
	go func() {
		_ = m.server.Serve()
	}()

	<-ctx.Done()
	m.log.Info("embedded broker stopping")
	return m.server.Close()
}

func newServer(cfg Config) (*mqtt.Server, error) {
	// The broker's own chatter goes nowhere; lifecycle events are
	// logged by the module.
	server := mqtt.New(&mqtt.Options{Logger: slog.New(slog.DiscardHandler)})

	switch {
	case cfg.AllowAnonymous:
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	case cfg.Username != "":
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
			ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("embedded mqtt requires allow_anonymous or a username")
	}

	return server, nil
}

// BrokerURL returns the client URL for a listen address.
func BrokerURL(listen string) string {
	return fmt.Sprintf("mqtt://%s", listen)
}

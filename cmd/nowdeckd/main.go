package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/adapters/clock"
	"github.com/nowdeck/nowdeck/internal/adapters/wschannel"
	"github.com/nowdeck/nowdeck/internal/core"
	"github.com/nowdeck/nowdeck/internal/deckd"
	"github.com/nowdeck/nowdeck/internal/modules/embeddedmqtt"
	"github.com/nowdeck/nowdeck/internal/modules/statemqtt"
)

func main() {
	var (
		configPath string
		serverURL  string
		logLevel   string
		dryRun     bool
	)

	defaultConfig, err := deckd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&serverURL, "server", "", "media host websocket URL override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := deckd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if cfg.Server.URL == "" {
		fmt.Fprintln(os.Stderr, "server url is required")
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger := deckd.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("nowdeckd starting",
		zap.String("server", cfg.Server.URL),
		zap.String("config", configPath),
	)

	channel, err := wschannel.NewClient(logger, wschannel.Options{URL: cfg.Server.URL})
	if err != nil {
		logger.Error("channel setup failed", zap.Error(err))
		os.Exit(1)
	}

	sessionCfg := core.Config{}
	if cfg.Server.IdleWindowMS > 0 {
		sessionCfg.IdleWindow = time.Duration(cfg.Server.IdleWindowMS) * time.Millisecond
	}
	session := core.NewSession(logger, channel, clock.Clock{}, sessionCfg)
	if err := session.Open(ctx); err != nil {
		logger.Error("connect failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = session.Close() }()

	modules, err := buildModules(cfg, logger, session)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := deckd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func buildModules(cfg deckd.Config, logger *zap.Logger, session *core.Session) ([]deckd.ModuleRunner, error) {
	var modules []deckd.ModuleRunner

	if cfg.Modules.EmbeddedMQTT.Enabled {
		module, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{
			Listen:         cfg.Modules.EmbeddedMQTT.Listen,
			AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
			Username:       cfg.Modules.EmbeddedMQTT.Username,
			Password:       cfg.Modules.EmbeddedMQTT.Password,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, deckd.ModuleRunner{Name: "embedded_mqtt", Run: module.Run})
	}

	if cfg.Modules.StateMQTT.Enabled {
		broker := cfg.Modules.StateMQTT.Broker
		if broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
			listen := cfg.Modules.EmbeddedMQTT.Listen
			if listen == "" {
				listen = "127.0.0.1:1883"
			}
			broker = embeddedmqtt.BrokerURL(listen)
		}
		module, err := statemqtt.NewModule(logger, statemqtt.Config{
			BrokerURL: broker,
			ClientID:  cfg.Modules.StateMQTT.ClientID,
			Username:  cfg.Modules.StateMQTT.Username,
			Password:  cfg.Modules.StateMQTT.Password,
			TopicBase: cfg.Modules.StateMQTT.TopicBase,
			Timeout:   time.Duration(cfg.Modules.StateMQTT.TimeoutMS) * time.Millisecond,
		}, session)
		if err != nil {
			return nil, err
		}
		modules = append(modules, deckd.ModuleRunner{Name: "state_mqtt", Run: module.Run})
	}

	return modules, nil
}

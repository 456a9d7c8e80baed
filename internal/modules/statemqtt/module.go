// Package statemqtt mirrors the live session view onto retained MQTT
// topics and accepts playback commands from a command topic, so home
// automation can follow and drive playback without speaking the host
// protocol.
package statemqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/core"
)

// DefaultTopicBase is the topic prefix used when none is configured.
const DefaultTopicBase = "nowdeck/v1"

// Config configures the MQTT state mirror.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TopicBase string
	Timeout   time.Duration
}

// Module publishes session views to MQTT and relays commands back.
type Module struct {
	log     *zap.Logger
	config  Config
	session *core.Session
	client  paho.Client
}

// NewModule creates a new state mirror module.
func NewModule(log *zap.Logger, cfg Config, session *core.Session) (*Module, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("state mqtt requires a broker url")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "nowdeck-mirror"
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = DefaultTopicBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Module{log: log, config: cfg, session: session}, nil
}

// Run connects to the broker and mirrors views until the context ends.
func (m *Module) Run(ctx context.Context) error {
	opts := paho.NewClientOptions().AddBroker(m.config.BrokerURL)
	opts.SetClientID(m.config.ClientID)
	opts.SetConnectTimeout(m.config.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client paho.Client) {
		topic := TopicCmd(m.config.TopicBase)
		if token := client.Subscribe(topic, 1, m.handleCommand); token.Wait() && token.Error() != nil {
			m.log.Warn("command subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	})
	if m.config.Username != "" {
		opts.SetUsername(m.config.Username)
		opts.SetPassword(m.config.Password)
	}

	m.client = paho.NewClient(opts)
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect broker: %w", token.Error())
	}
	m.log.Info("state mirror connected", zap.String("broker", m.config.BrokerURL), zap.String("base", m.config.TopicBase))

	defer m.client.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return nil
		case view, ok := <-m.session.Updates():
			if !ok {
				return nil
			}
			m.publishView(view)
		}
	}
}

func (m *Module) publishView(view core.View) {
	if view.Track != nil {
		m.publishJSON(TopicTrack(m.config.TopicBase), view.Track)
	}
	if view.Controls != nil {
		m.publishJSON(TopicControls(m.config.TopicBase), view.Controls)
	}
	m.publishJSON(TopicTimeline(m.config.TopicBase), timelineMessage{
		PositionMS: view.Display.PositionMS,
		DurationMS: view.DurationMS,
		Seeking:    view.Display.Kind == core.DisplayOverridden,
	})
}

func (m *Module) publishJSON(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		m.log.Warn("marshal state", zap.String("topic", topic), zap.Error(err))
		return
	}
	if token := m.client.Publish(topic, 1, true, raw); token.Wait() && token.Error() != nil {
		m.log.Warn("publish state", zap.String("topic", topic), zap.Error(token.Error()))
	}
}

func (m *Module) handleCommand(_ paho.Client, msg paho.Message) {
	command := strings.TrimSpace(string(msg.Payload()))
	if err := Dispatch(m.session, command); err != nil {
		m.log.Warn("dropping command", zap.String("command", command), zap.Error(err))
		return
	}
	m.log.Debug("command dispatched", zap.String("command", command))
}

type timelineMessage struct {
	PositionMS int64 `json:"positionMs"`
	DurationMS int64 `json:"durationMs"`
	Seeking    bool  `json:"seeking"`
}

// Dispatch applies a command-topic payload to the session. Seek runs
// as an immediate begin/commit pair; everything else maps to a single
// intent.
func Dispatch(session *core.Session, command string) error {
	if positionRaw, ok := strings.CutPrefix(command, "seek:"); ok {
		position, err := strconv.ParseInt(positionRaw, 10, 64)
		if err != nil || position < 0 {
			return fmt.Errorf("bad seek position %q", positionRaw)
		}
		session.BeginSeek(position)
		session.CommitSeek()
		return nil
	}

	switch command {
	case "play_pause":
		session.PlayPause()
	case "next":
		session.Next()
	case "prev":
		session.Previous()
	case "toggle_shuffle":
		session.ToggleShuffle()
	case "cycle_repeat":
		session.CycleRepeat()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

// TopicTrack is the retained track metadata topic.
func TopicTrack(base string) string { return base + "/track" }

// TopicControls is the retained controls snapshot topic.
func TopicControls(base string) string { return base + "/controls" }

// TopicTimeline is the retained timeline topic.
func TopicTimeline(base string) string { return base + "/timeline" }

// TopicCmd is the inbound command topic.
func TopicCmd(base string) string { return base + "/cmd" }

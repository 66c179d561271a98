package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/focusmonitor/focusmonitor/agent/internal/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectWait = 250 // milliseconds
)

// mqttSource subscribes to tracker frames published over MQTT.
type mqttSource struct {
	cfg  config.MQTTConfig
	slot *Slot
	now  func() time.Time
}

func newMQTTSource(cfg config.MQTTConfig, slot *Slot) *mqttSource {
	return &mqttSource{cfg: cfg, slot: slot, now: time.Now}
}

func (s *mqttSource) Current() Sample { return s.slot.Get() }

// Run connects to the broker, subscribes to the frame topic and blocks until
// ctx is cancelled. The paho client reconnects on its own after the initial
// connection succeeds.
func (s *mqttSource) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.clientID())
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if pw := s.cfg.Password(); pw != "" {
		opts.SetPassword(pw)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("source: mqtt connection lost", "broker", s.cfg.Broker, "err", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Clean sessions drop subscriptions, so subscribe on every (re)connect.
		tok := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			s.handle(msg.Topic(), msg.Payload())
		})
		if tok.Wait() && tok.Error() != nil {
			slog.Error("source: mqtt subscribe failed", "topic", s.cfg.Topic, "err", tok.Error())
			return
		}
		slog.Info("source: mqtt subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic)
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("source: mqtt connect %s: %w", s.cfg.Broker, tok.Error())
	}
	defer client.Disconnect(mqttDisconnectWait)

	<-ctx.Done()
	client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	return nil
}

// handle decodes one frame message into the slot. Undecodable frames are
// stored as no-face samples so the monitor counts them as absent data.
func (s *mqttSource) handle(topic string, payload []byte) {
	now := s.now()
	smp, err := DecodeFrame(payload, now)
	if err != nil {
		slog.Warn("source: dropping bad frame", "topic", topic, "bytes", len(payload), "err", err)
		s.slot.Put(NoFace(now))
		return
	}
	s.slot.Put(smp)
}

func (s *mqttSource) clientID() string {
	if s.cfg.ClientID != "" {
		return s.cfg.ClientID
	}
	return fmt.Sprintf("focusmonitor-agent-%d", s.now().UnixNano())
}

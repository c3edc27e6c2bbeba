// Package mqtt publishes polled gateway state to an MQTT broker with Home
// Assistant discovery.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/monitor"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// publishClient is the part of the paho client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Publisher mirrors monitor snapshots onto MQTT topics.
type Publisher struct {
	client publishClient
	prefix string
	logger *zap.Logger
	unsub  func()

	mu         sync.Mutex
	discovered string // device ID discovery was last published for
	last       *monitor.Snapshot
}

// NewPublisher creates and connects an MQTT publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{
		prefix: cfg.TopicPrefix,
		logger: logger.With(zap.String("component", "mqtt")),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("gateway-monitor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/availability", "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			p.logger.Info("MQTT connected")
			p.setClient(c)
			p.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			p.logger.Warn("MQTT connection lost", zap.Error(err))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	p.setClient(client)
	return p, nil
}

func (p *Publisher) setClient(c publishClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = c
}

// Start publishes every snapshot the store produces.
func (p *Publisher) Start(store *monitor.Store) {
	p.unsub = store.Subscribe(p.Publish)
	p.logger.Info("MQTT publisher started", zap.String("prefix", p.prefix))
}

// Stop publishes offline availability, unsubscribes, and disconnects.
func (p *Publisher) Stop() {
	if p.unsub != nil {
		p.unsub()
	}
	p.publish(p.prefix+"/availability", []byte("offline"), true)
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client != nil {
		client.Disconnect(1000)
	}
	p.logger.Info("MQTT publisher stopped")
}

// Publish sends snap as retained state, preceded by discovery the first time
// a gateway is seen.
func (p *Publisher) Publish(snap monitor.Snapshot) {
	payload, err := statePayload(snap)
	if err != nil {
		p.logger.Warn("encode MQTT state", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.last = &snap
	id := deviceInfo(snap).Identifiers[0]
	announce := p.discovered != id
	p.discovered = id
	p.mu.Unlock()

	if announce {
		p.publishDiscovery(snap)
	}
	availability := "online"
	if snap.IsOffline() {
		availability = "offline"
	}
	p.publish(p.prefix+"/availability", []byte(availability), true)
	p.publish(p.prefix+"/state", payload, true)
}

// onConnect republishes after a reconnect so retained topics survive broker
// restarts.
func (p *Publisher) onConnect() {
	p.mu.Lock()
	last := p.last
	p.discovered = ""
	p.mu.Unlock()

	if last == nil {
		p.publish(p.prefix+"/availability", []byte("online"), true)
		return
	}
	p.Publish(*last)
}

func (p *Publisher) publishDiscovery(snap monitor.Snapshot) {
	for _, msg := range buildDiscovery(snap, p.prefix) {
		p.publish(msg.Topic, msg.Payload, true)
	}
	p.logger.Info("published HA discovery", zap.String("device", deviceInfo(snap).Identifiers[0]))
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return
	}
	token := client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			p.logger.Warn("MQTT publish timeout", zap.String("topic", topic))
		} else if err := token.Error(); err != nil {
			p.logger.Warn("MQTT publish error", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

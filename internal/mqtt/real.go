package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a bounded backlog and replayed, oldest
// first, once the client reconnects.
type RealPublisher struct {
	client   paho.Client
	onStatus func(connected bool)

	mu        sync.Mutex
	backlog   *backlog
	connected bool
	seen      bool // connected at least once
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not fatal: the client keeps retrying in the background and
// messages are buffered meanwhile. onStatus, if set, is called on every
// connection state change.
func NewRealPublisher(broker, clientID string, onStatus func(connected bool)) (*RealPublisher, error) {
	if broker == "" {
		return nil, fmt.Errorf("no broker address")
	}
	p := &RealPublisher{
		onStatus: onStatus,
		backlog:  newBacklog(DefaultBufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.WithField("broker", broker).Warn("mqtt: broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.seen
	p.seen = true
	queued := p.backlog.drain()
	p.mu.Unlock()

	log.WithField("replayed", len(queued)).Info("mqtt: connected")
	p.notify(true)

	for _, m := range queued {
		if err := p.send(m); err != nil {
			log.WithError(err).WithField("topic", m.topic).Warn("mqtt: replay failed")
		}
	}
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		if err := p.send(pending{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			log.WithError(err).Warn("mqtt: publish reconnected")
		}
	}
}

func (p *RealPublisher) handleLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.WithError(err).Warn("mqtt: connection lost")
	p.notify(false)
}

func (p *RealPublisher) notify(connected bool) {
	if p.onStatus != nil {
		p.onStatus(connected)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish sends a hub event to the broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.enqueue(pending{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.enqueue(pending{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) enqueue(m pending) error {
	p.mu.Lock()
	if !p.connected {
		p.backlog.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(m); err != nil {
		p.mu.Lock()
		p.backlog.push(m)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(m pending) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second grace
	return nil
}

// Package mqttpub publishes coordinator snapshots to an MQTT broker.
//
// The publisher is a plain coordinator listener: each published snapshot
// becomes a set of retained state topics, one for the system and one per
// zone, plus an availability topic that flips to offline when the unit is
// unreachable or the bridge hits a persistent failure.
//
// Topic layout (prefix configurable, default "actron"):
//
//	actron/<serial>/state
//	actron/<serial>/zones/<zone_id>/state
//	actron/<serial>/availability        ("online" / "offline", retained)
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqttpub: connection failed")

	// ErrNotConnected is returned when publishing on a disconnected client.
	ErrNotConnected = errors.New("mqttpub: client not connected")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqttpub: publish failed")
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Options configures the publisher
type Options struct {
	Broker   string
	Prefix   string
	Username string
	Password string

	// ClientID defaults to "actron-neo-bridge-" plus a random suffix so two
	// bridges on one broker do not evict each other.
	ClientID string

	// QoS for state publishes. Default 1.
	QoS byte

	Logger *logger.Logger
}

// Publisher fans snapshots out to MQTT. Safe for use as a coordinator
// listener and observer.
type Publisher struct {
	client pahomqtt.Client
	prefix string
	qos    byte
	log    *logger.Logger

	// mu guards serial, remembered from the last published snapshot so
	// failure observers can address the per-serial availability topic
	mu     sync.Mutex
	serial string
}

// Connect establishes the broker connection and returns a ready publisher
func Connect(opts Options) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("%w: broker URL is required", ErrConnectionFailed)
	}
	if opts.Prefix == "" {
		opts.Prefix = "actron"
	}
	if opts.ClientID == "" {
		opts.ClientID = "actron-neo-bridge-" + uuid.NewString()[:8]
	}
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := pahomqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.Info("Connected to MQTT broker", "broker", opts.Broker, "client_id", opts.ClientID)
	return &Publisher{
		client: client,
		prefix: opts.Prefix,
		qos:    opts.QoS,
		log:    log,
	}, nil
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// HandleSnapshot is the coordinator listener: it publishes the full state
// of the snapshot as retained topics.
func (p *Publisher) HandleSnapshot(snap *coordinator.Snapshot) {
	serial := snap.Device.Serial
	p.mu.Lock()
	p.serial = serial
	p.mu.Unlock()

	if err := p.publishJSON(p.stateTopic(serial), newSystemStatus(snap)); err != nil {
		p.log.WithSerial(serial).Warn("Failed to publish system state", "error", err.Error())
	}

	for _, zone := range snap.Zones {
		if err := p.publishJSON(p.zoneTopic(serial, zone.ID), newZoneStatus(zone)); err != nil {
			p.log.WithSerial(serial).Warn("Failed to publish zone state", "zone_id", zone.ID, "error", err.Error())
		}
	}

	if err := p.publishRaw(p.availabilityTopic(serial), []byte(payloadOnline)); err != nil {
		p.log.WithSerial(serial).Warn("Failed to publish availability", "error", err.Error())
	}
}

// RefreshSucceeded implements coordinator.Observer. State publishing is
// handled by the listener path; nothing extra to do here.
func (p *Publisher) RefreshSucceeded(time.Duration, *coordinator.Snapshot) {}

// RefreshFailed implements coordinator.Observer: the availability topic
// flips to offline when the unit is unreachable or the failure is
// persistent. Ordinary transient errors keep the retained (stale) state.
func (p *Publisher) RefreshFailed(_ time.Duration, err error) {
	if neo.KindOf(err) != neo.KindOffline && neo.IsTransient(err) {
		return
	}

	p.mu.Lock()
	serial := p.serial
	p.mu.Unlock()
	if serial == "" {
		// Nothing published yet, so there is no retained state to contradict
		return
	}
	p.MarkOffline(serial)
}

// MarkOffline publishes offline availability for a system, on shutdown and
// when refreshes report the unit unreachable
func (p *Publisher) MarkOffline(serial string) {
	if err := p.publishRaw(p.availabilityTopic(serial), []byte(payloadOffline)); err != nil {
		p.log.WithSerial(serial).Warn("Failed to publish offline availability", "error", err.Error())
	}
}

func (p *Publisher) publishJSON(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return p.publishRaw(topic, data)
}

func (p *Publisher) publishRaw(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (p *Publisher) stateTopic(serial string) string {
	return fmt.Sprintf("%s/%s/state", p.prefix, serial)
}

func (p *Publisher) zoneTopic(serial, zoneID string) string {
	return fmt.Sprintf("%s/%s/zones/%s/state", p.prefix, serial, zoneID)
}

func (p *Publisher) availabilityTopic(serial string) string {
	return fmt.Sprintf("%s/%s/availability", p.prefix, serial)
}

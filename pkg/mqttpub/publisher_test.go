package mqttpub

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
)

type publishRecord struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeToken completes immediately
type fakeToken struct {
	pahomqtt.Token
	err error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

// fakeMQTT records publishes; unused Client methods panic via the embedded nil
type fakeMQTT struct {
	pahomqtt.Client
	connected  bool
	publishErr error
	published  []publishRecord
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.published = append(f.published, publishRecord{
		topic:    topic,
		retained: retained,
		payload:  payload.([]byte),
	})
	return &fakeToken{err: f.publishErr}
}

func newTestPublisher() (*Publisher, *fakeMQTT) {
	client := &fakeMQTT{connected: true}
	return &Publisher{
		client: client,
		prefix: "actron",
		qos:    1,
		log:    logger.Noop(),
	}, client
}

func testSnapshot() *coordinator.Snapshot {
	temp := 21.5
	airflow := 80
	return &coordinator.Snapshot{
		FetchedAt: time.Now(),
		Device:    coordinator.Device{Serial: "ABC123456", SupportsZones: true},
		Main:      coordinator.MainState{Power: true, Mode: "COOL"},
		Zones: map[string]*coordinator.Zone{
			"zone_1": {
				ID:                    "zone_1",
				Name:                  "Living",
				Enabled:               true,
				Temp:                  &temp,
				AirflowControlEnabled: true,
				AirflowSetpoint:       &airflow,
			},
		},
	}
}

// TestConnect_RequiresBroker tests the broker URL guard
func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

// TestTopics tests topic construction
func TestTopics(t *testing.T) {
	p, _ := newTestPublisher()

	assert.Equal(t, "actron/ABC123456/state", p.stateTopic("ABC123456"))
	assert.Equal(t, "actron/ABC123456/zones/zone_1/state", p.zoneTopic("ABC123456", "zone_1"))
	assert.Equal(t, "actron/ABC123456/availability", p.availabilityTopic("ABC123456"))
}

// TestHandleSnapshot tests the retained state fan-out
func TestHandleSnapshot(t *testing.T) {
	p, client := newTestPublisher()

	p.HandleSnapshot(testSnapshot())

	require.Len(t, client.published, 3)
	topics := make(map[string][]byte)
	for _, rec := range client.published {
		assert.True(t, rec.retained, "state topics must be retained")
		topics[rec.topic] = rec.payload
	}

	var system systemStatus
	require.NoError(t, json.Unmarshal(topics["actron/ABC123456/state"], &system))
	assert.True(t, system.Main.Power)
	assert.Equal(t, "COOL", system.Main.Mode)

	var zone zoneStatus
	require.NoError(t, json.Unmarshal(topics["actron/ABC123456/zones/zone_1/state"], &zone))
	assert.Equal(t, "Living", zone.Name)
	assert.True(t, zone.Available)

	assert.Equal(t, []byte(payloadOnline), topics["actron/ABC123456/availability"])
}

// TestZoneStatus_LockedZoneUnavailable tests the availability rule: a locked
// airflow zone is unavailable, a merely disabled zone is not
func TestZoneStatus_LockedZoneUnavailable(t *testing.T) {
	locked := &coordinator.Zone{ID: "zone_1", AirflowControlEnabled: true, AirflowLocked: true}
	assert.False(t, newZoneStatus(locked).Available)

	disabled := &coordinator.Zone{ID: "zone_2", Enabled: false}
	assert.True(t, newZoneStatus(disabled).Available)

	plain := &coordinator.Zone{ID: "zone_3", AirflowControlEnabled: true}
	assert.True(t, newZoneStatus(plain).Available)
}

// TestRefreshFailed_OfflineOnly tests that only offline or persistent
// failures flip the per-serial availability topic
func TestRefreshFailed_OfflineOnly(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		publishes bool
	}{
		{"unit offline", &neo.Error{Kind: neo.KindOffline}, true},
		{"auth failure is persistent", &neo.Error{Kind: neo.KindAuth}, true},
		{"transient api error keeps retained state", &neo.Error{Kind: neo.KindAPI}, false},
		{"rate limit keeps retained state", &neo.Error{Kind: neo.KindRateLimit}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, client := newTestPublisher()
			p.HandleSnapshot(testSnapshot())
			client.published = nil

			p.RefreshFailed(time.Second, tt.err)

			if tt.publishes {
				require.Len(t, client.published, 1)
				assert.Equal(t, "actron/ABC123456/availability", client.published[0].topic)
				assert.Equal(t, []byte(payloadOffline), client.published[0].payload)
				assert.True(t, client.published[0].retained)
			} else {
				assert.Empty(t, client.published)
			}
		})
	}
}

// TestRefreshFailed_BeforeFirstSnapshot tests that with no retained state on
// the broker yet there is nothing to mark offline
func TestRefreshFailed_BeforeFirstSnapshot(t *testing.T) {
	p, client := newTestPublisher()

	p.RefreshFailed(time.Second, &neo.Error{Kind: neo.KindOffline})

	assert.Empty(t, client.published)
}

// TestMarkOffline tests the shutdown availability publish
func TestMarkOffline(t *testing.T) {
	p, client := newTestPublisher()

	p.MarkOffline("ABC123456")

	require.Len(t, client.published, 1)
	assert.Equal(t, "actron/ABC123456/availability", client.published[0].topic)
	assert.Equal(t, []byte(payloadOffline), client.published[0].payload)
	assert.True(t, client.published[0].retained)
}

// TestPublish_Disconnected tests the not-connected guard
func TestPublish_Disconnected(t *testing.T) {
	p, client := newTestPublisher()
	client.connected = false

	err := p.publishRaw("actron/test", []byte("x"))

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, client.published)
}

// TestPublish_TokenError tests publish failure wrapping
func TestPublish_TokenError(t *testing.T) {
	p, client := newTestPublisher()
	client.publishErr = errors.New("broker rejected")

	err := p.publishRaw("actron/test", []byte("x"))

	assert.ErrorIs(t, err, ErrPublishFailed)
}

package coordinator

import (
	"testing"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

var testSystem = neo.System{Serial: "ABC123456", Description: "Home"}

// baseStatus returns a two-zone status document, zone 2 airflow-capable
func baseStatus() *neo.StatusResponse {
	return &neo.StatusResponse{
		LastKnownState: neo.LastKnownState{
			MasterInfo: neo.MasterInfo{
				LiveTemp:        floatPtr(22.5),
				LiveHumidity:    floatPtr(55),
				LiveOutdoorTemp: floatPtr(31),
			},
			LiveAircon: neo.LiveAircon{
				CompressorMode: "COOL",
			},
			UserAirconSettings: neo.UserAirconSettings{
				IsOn:                    true,
				Mode:                    "COOL",
				FanMode:                 "HIGH+CONT",
				TemperatureSetpointCool: 23,
				TemperatureSetpointHeat: 20,
				EnabledZones:            []bool{true, false},
			},
			RemoteZoneInfo: []neo.RemoteZoneInfo{
				{
					Title:    "Living",
					Exists:   true,
					LiveTemp: floatPtr(21.5),
				},
				{
					Title:           "Bedroom",
					Exists:          true,
					LiveTemp:        floatPtr(20),
					AirflowControl:  true,
					AirflowSetpoint: intPtr(80),
					ZonePosition:    intPtr(60),
					MinOpenPosition: intPtr(10),
					MaxOpenPosition: intPtr(100),
				},
			},
			AirconSystem: neo.AirconSystem{
				MasterSerial:  "ABC123456",
				MasterWCModel: "NEO-12",
				Peripherals: []neo.Peripheral{
					{
						LogicalAddress:   1,
						ZoneAssignment:   []int{2}, // 1-based: bedroom
						RemainingBattery: intPtr(85),
						Signal:           intPtr(3),
					},
				},
			},
		},
	}
}

// TestNormalize_Success tests the full document path
func TestNormalize_Success(t *testing.T) {
	now := time.Now()
	snap, err := Normalize(testSystem, baseStatus(), now)

	require.NoError(t, err)
	assert.Equal(t, now, snap.FetchedAt)
	assert.False(t, snap.Stale)

	assert.Equal(t, "ABC123456", snap.Device.Serial)
	assert.Equal(t, "Home", snap.Device.Name)
	assert.Equal(t, "NEO-12", snap.Device.Model)
	assert.True(t, snap.Device.SupportsZones)
	assert.True(t, snap.Device.SupportsAirflowControl)
	assert.False(t, snap.Device.SupportsEnergyMonitoring)

	assert.True(t, snap.Main.Power)
	assert.Equal(t, "COOL", snap.Main.Mode)
	assert.Equal(t, "HIGH", snap.Main.FanMode)
	assert.True(t, snap.Main.FanContinuous)
	assert.Equal(t, 22.5, *snap.Main.IndoorTemp)
	assert.Equal(t, 23.0, snap.Main.SetpointCool)
	assert.Nil(t, snap.Main.CompressorPower)

	require.Len(t, snap.Zones, 2)
	living := snap.Zones["zone_1"]
	require.NotNil(t, living)
	assert.Equal(t, "Living", living.Name)
	assert.True(t, living.Enabled)
	assert.Nil(t, living.BatteryLevel)
}

// TestNormalize_AirflowGating tests that airflow and damper fields are only
// surfaced on capable zones
func TestNormalize_AirflowGating(t *testing.T) {
	snap, err := Normalize(testSystem, baseStatus(), time.Now())
	require.NoError(t, err)

	living := snap.Zones["zone_1"]
	bedroom := snap.Zones["zone_2"]

	// Living has no airflow control: all airflow fields absent
	assert.False(t, living.AirflowControlEnabled)
	assert.Nil(t, living.AirflowSetpoint)
	assert.Nil(t, living.DamperPosition)

	// Bedroom carries the full airflow block
	assert.True(t, bedroom.AirflowControlEnabled)
	assert.Equal(t, 80, *bedroom.AirflowSetpoint)
	assert.Equal(t, 60, *bedroom.DamperPosition)
	assert.Equal(t, 10, *bedroom.AirflowMinPosition)
	assert.Equal(t, 100, *bedroom.AirflowMaxPosition)
	assert.True(t, bedroom.AirflowAvailable())
}

// TestNormalize_AirflowRawValuesDroppedWithoutCapability tests that raw
// airflow values on a non-capable system are not surfaced
func TestNormalize_AirflowRawValuesDroppedWithoutCapability(t *testing.T) {
	status := baseStatus()
	// No zone advertises the capability, but one still carries raw values
	status.LastKnownState.RemoteZoneInfo[1].AirflowControl = false

	snap, err := Normalize(testSystem, status, time.Now())
	require.NoError(t, err)

	assert.False(t, snap.Device.SupportsAirflowControl)
	bedroom := snap.Zones["zone_2"]
	assert.Nil(t, bedroom.AirflowSetpoint)
	assert.Nil(t, bedroom.DamperPosition)
}

// TestNormalize_LockedZoneUnavailable tests the airflow lock rule
func TestNormalize_LockedZoneUnavailable(t *testing.T) {
	status := baseStatus()
	status.LastKnownState.RemoteZoneInfo[1].AirflowLocked = true

	snap, err := Normalize(testSystem, status, time.Now())
	require.NoError(t, err)

	bedroom := snap.Zones["zone_2"]
	assert.True(t, bedroom.AirflowControlEnabled)
	assert.True(t, bedroom.AirflowLocked)
	assert.False(t, bedroom.AirflowAvailable())
}

// TestNormalize_EnergyMonitoring tests the compressor power gating
func TestNormalize_EnergyMonitoring(t *testing.T) {
	status := baseStatus()
	status.LastKnownState.LiveAircon.OutdoorUnit = &neo.OutdoorUnit{CompPower: floatPtr(1450)}

	snap, err := Normalize(testSystem, status, time.Now())
	require.NoError(t, err)

	assert.True(t, snap.Device.SupportsEnergyMonitoring)
	require.NotNil(t, snap.Main.CompressorPower)
	assert.Equal(t, 1450.0, *snap.Main.CompressorPower)
}

// TestNormalize_MissingOptionalFieldsTolerated tests that absent optional
// telemetry never fails the cycle
func TestNormalize_MissingOptionalFieldsTolerated(t *testing.T) {
	status := baseStatus()
	status.LastKnownState.MasterInfo.LiveHumidity = nil
	status.LastKnownState.MasterInfo.LiveOutdoorTemp = nil
	status.LastKnownState.RemoteZoneInfo[0].LiveTemp = nil

	snap, err := Normalize(testSystem, status, time.Now())

	require.NoError(t, err)
	assert.Nil(t, snap.Main.IndoorHumidity)
	assert.Nil(t, snap.Main.OutdoorTemp)
	assert.Nil(t, snap.Zones["zone_1"].Temp)
}

// TestNormalize_MissingMasterTemperature tests that a document without the
// master reading fails the whole cycle as transient
func TestNormalize_MissingMasterTemperature(t *testing.T) {
	status := baseStatus()
	status.LastKnownState.MasterInfo.LiveTemp = nil

	_, err := Normalize(testSystem, status, time.Now())

	require.Error(t, err)
	assert.Equal(t, neo.KindAPI, neo.KindOf(err))
	assert.True(t, neo.IsTransient(err))
}

// TestNormalize_OutOfRangeTemperature tests rejection of absurd readings
func TestNormalize_OutOfRangeTemperature(t *testing.T) {
	for _, temp := range []float64{-80, 120} {
		status := baseStatus()
		status.LastKnownState.MasterInfo.LiveTemp = floatPtr(temp)

		_, err := Normalize(testSystem, status, time.Now())

		require.Error(t, err)
		assert.Equal(t, neo.KindAPI, neo.KindOf(err))
	}
}

// TestNormalize_NilStatus tests the nil document guard
func TestNormalize_NilStatus(t *testing.T) {
	_, err := Normalize(testSystem, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, neo.KindAPI, neo.KindOf(err))
}

// TestNormalize_NonExistentZonesSkipped tests that placeholder zone slots
// are not surfaced
func TestNormalize_NonExistentZonesSkipped(t *testing.T) {
	status := baseStatus()
	status.LastKnownState.RemoteZoneInfo = append(status.LastKnownState.RemoteZoneInfo,
		neo.RemoteZoneInfo{Title: "", Exists: false})

	snap, err := Normalize(testSystem, status, time.Now())

	require.NoError(t, err)
	assert.Len(t, snap.Zones, 2)
	assert.NotContains(t, snap.Zones, "zone_3")
}

// TestNormalize_PeripheralAttachment tests battery/signal mapping from the
// 1-based zone assignment
func TestNormalize_PeripheralAttachment(t *testing.T) {
	snap, err := Normalize(testSystem, baseStatus(), time.Now())
	require.NoError(t, err)

	bedroom := snap.Zones["zone_2"]
	require.NotNil(t, bedroom.BatteryLevel)
	assert.Equal(t, 85, *bedroom.BatteryLevel)
	assert.Equal(t, 3, *bedroom.SignalStrength)
}

// TestMarkStale tests that staleness flags a copy and leaves the original
// untouched
func TestMarkStale(t *testing.T) {
	snap, err := Normalize(testSystem, baseStatus(), time.Now())
	require.NoError(t, err)

	stale := snap.markStale()

	assert.False(t, snap.Stale)
	assert.True(t, stale.Stale)
	assert.NotSame(t, snap, stale)
	// Flagging an already-stale snapshot is a no-op
	assert.Same(t, stale, stale.markStale())

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.markStale())
}

package neo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetPower tests the power command wire shape
func TestSetPower(t *testing.T) {
	cmd := SetPower(true)
	require.NoError(t, cmd.validate())

	env := cmd.envelope()
	assert.Equal(t, "set-settings", env.Command["type"])
	assert.Equal(t, true, env.Command["UserAirconSettings.isOn"])
	assert.False(t, cmd.zoneScoped())
}

// TestSetMode tests that switching mode also powers the system on
func TestSetMode(t *testing.T) {
	cmd := SetMode(ModeCool)
	require.NoError(t, cmd.validate())

	env := cmd.envelope()
	assert.Equal(t, "COOL", env.Command["UserAirconSettings.Mode"])
	assert.Equal(t, true, env.Command["UserAirconSettings.isOn"])
}

// TestSetMode_Invalid tests rejection of unsupported modes
func TestSetMode_Invalid(t *testing.T) {
	cmd := SetMode("TURBO")

	err := cmd.validate()
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
}

// TestSetFanMode tests the continuous suffix handling
func TestSetFanMode(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		continuous bool
		want       string
	}{
		{"plain low", FanLow, false, "LOW"},
		{"continuous high", FanHigh, true, "HIGH+CONT"},
		{"suffix stripped before rebuild", "AUTO+CONT", true, "AUTO+CONT"},
		{"legacy dash suffix stripped", "MED-CONT", false, "MED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := SetFanMode(tt.mode, tt.continuous)
			require.NoError(t, cmd.validate())
			assert.Equal(t, tt.want, cmd.envelope().Command["UserAirconSettings.FanMode"])
		})
	}
}

// TestSetFanMode_Invalid tests rejection of unsupported fan modes
func TestSetFanMode_Invalid(t *testing.T) {
	cmd := SetFanMode("TURBO", false)
	assert.Error(t, cmd.validate())
}

// TestSetTemperature tests setpoint key selection per side
func TestSetTemperature(t *testing.T) {
	cool := SetTemperature(23.5, true)
	assert.Equal(t, 23.5, cool.envelope().Command["UserAirconSettings.TemperatureSetpoint_Cool_oC"])

	heat := SetTemperature(20.0, false)
	assert.Equal(t, 20.0, heat.envelope().Command["UserAirconSettings.TemperatureSetpoint_Heat_oC"])
}

// TestSetZoneEnabled tests the indexed zone toggle
func TestSetZoneEnabled(t *testing.T) {
	cmd := SetZoneEnabled(2, true)
	require.NoError(t, cmd.validate())
	assert.True(t, cmd.zoneScoped())
	assert.Equal(t, true, cmd.envelope().Command["UserAirconSettings.EnabledZones[2]"])
}

// TestSetZoneTemperature tests the per-zone setpoint keys
func TestSetZoneTemperature(t *testing.T) {
	cmd := SetZoneTemperature(0, 22.0, true)
	require.NoError(t, cmd.validate())
	assert.Equal(t, 22.0, cmd.envelope().Command["RemoteZoneInfo[0].TemperatureSetpoint_Cool_oC"])

	cmd = SetZoneTemperature(3, 19.5, false)
	assert.Equal(t, 19.5, cmd.envelope().Command["RemoteZoneInfo[3].TemperatureSetpoint_Heat_oC"])
}

// TestSetZoneAirflow tests the 0-100 step-5 validation
func TestSetZoneAirflow(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		valid   bool
	}{
		{"zero", 0, true},
		{"full", 100, true},
		{"step of five", 55, true},
		{"off step", 52, false},
		{"negative", -5, false},
		{"over full", 105, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := SetZoneAirflow(1, tt.percent)

			err := cmd.validate()
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.percent, cmd.envelope().Command["RemoteZoneInfo[1].UserAirflowSetting_pc"])
			} else {
				require.Error(t, err)
				assert.Equal(t, KindZone, KindOf(err))
			}
		})
	}
}

// TestNegativeZoneIndex tests rejection of negative zone indexes
func TestNegativeZoneIndex(t *testing.T) {
	for _, cmd := range []Command{
		SetZoneEnabled(-1, true),
		SetZoneTemperature(-1, 22, true),
		SetZoneAirflow(-1, 50),
	} {
		err := cmd.validate()
		require.Error(t, err)
		assert.Equal(t, KindZone, KindOf(err))
	}
}

// TestEmptyCommand tests that a zero-value command is rejected
func TestEmptyCommand(t *testing.T) {
	var cmd Command
	err := cmd.validate()
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
}

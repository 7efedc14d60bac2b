package coordinator

import "time"

// Snapshot is the normalized view of one AC system at a point in time.
//
// A snapshot is immutable once published: each successful refresh replaces
// the whole value, and readers between refreshes always observe the same
// pointer. Consumers must never mutate a snapshot they received.
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`

	// Stale marks a snapshot that is being served past a failed refresh.
	// The data is the last known good state, not current.
	Stale bool `json:"stale"`

	Device Device           `json:"device"`
	Main   MainState        `json:"main"`
	Zones  map[string]*Zone `json:"zones"`
}

// Device describes the physical unit and its capabilities
type Device struct {
	Serial          string `json:"serial"`
	Name            string `json:"name"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	IndoorModel     string `json:"indoor_model,omitempty"`

	// Capability flags. Zone airflow and damper fields are only meaningful
	// when SupportsAirflowControl is set; energy fields only when
	// SupportsEnergyMonitoring is set.
	SupportsZones            bool `json:"supports_zones"`
	SupportsAirflowControl   bool `json:"supports_airflow_control"`
	SupportsEnergyMonitoring bool `json:"supports_energy_monitoring"`
}

// MainState is the system-level operating state
type MainState struct {
	Power            bool   `json:"power"`
	Mode             string `json:"mode"`
	FanMode          string `json:"fan_mode"`
	FanContinuous    bool   `json:"fan_continuous"`
	CompressorMode   string `json:"compressor_mode"`
	Defrosting       bool   `json:"defrosting"`
	FilterNeedsClean bool   `json:"filter_needs_clean"`
	AwayMode         bool   `json:"away_mode"`
	QuietMode        bool   `json:"quiet_mode"`

	IndoorTemp     *float64 `json:"indoor_temp,omitempty"`
	IndoorHumidity *float64 `json:"indoor_humidity,omitempty"`
	OutdoorTemp    *float64 `json:"outdoor_temp,omitempty"`
	SetpointCool   float64  `json:"setpoint_cool"`
	SetpointHeat   float64  `json:"setpoint_heat"`

	// CompressorPower is only present on energy-capable series
	CompressorPower *float64 `json:"compressor_power,omitempty"`
}

// Zone is one independently controlled sub-area
type Zone struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	Temp         *float64 `json:"temp,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	SetpointCool *float64 `json:"setpoint_cool,omitempty"`
	SetpointHeat *float64 `json:"setpoint_heat,omitempty"`

	BatteryLevel   *int `json:"battery_level,omitempty"`
	SignalStrength *int `json:"signal_strength,omitempty"`

	// Airflow fields are absent (nil) unless the device supports airflow
	// control and the zone has it enabled, even when the raw payload
	// carries values.
	AirflowControlEnabled bool `json:"airflow_control_enabled"`
	AirflowLocked         bool `json:"airflow_locked"`
	AirflowSetpoint       *int `json:"airflow_setpoint,omitempty"`
	AirflowMinPosition    *int `json:"airflow_min_position,omitempty"`
	AirflowMaxPosition    *int `json:"airflow_max_position,omitempty"`
	DamperPosition        *int `json:"damper_position,omitempty"`
}

// AirflowAvailable reports whether airflow control may be offered for this
// zone. A locked zone is unavailable, not merely read-only.
func (z *Zone) AirflowAvailable() bool {
	return z.AirflowControlEnabled && !z.AirflowLocked
}

// markStale returns a copy of the snapshot flagged as stale. The original
// is left untouched so readers holding it are unaffected.
func (s *Snapshot) markStale() *Snapshot {
	if s == nil || s.Stale {
		return s
	}
	dup := *s
	dup.Stale = true
	return &dup
}

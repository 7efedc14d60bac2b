// Package neo implements a client for the ActronAir Neo cloud API.
package neo

// pairingResponse is returned by POST /api/v0/client/user-devices.
// The pairing token acts as the long-lived refresh token.
type pairingResponse struct {
	PairingToken string `json:"pairingToken"`
}

// tokenResponse is returned by POST /api/v0/oauth/token
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SystemsResponse is returned by GET /api/v0/client/ac-systems
type SystemsResponse struct {
	Embedded struct {
		ACSystems []System `json:"ac-system"`
	} `json:"_embedded"`
}

// System identifies one AC system attached to the account
type System struct {
	Serial      string `json:"serial"`
	Description string `json:"description"`
	Type        string `json:"type"`
	ID          string `json:"id"`
}

// StatusResponse is returned by GET /api/v0/client/ac-systems/status/latest
type StatusResponse struct {
	LastKnownState LastKnownState `json:"lastKnownState"`
}

// LastKnownState is the full state document the vendor keeps for a system
type LastKnownState struct {
	MasterInfo         MasterInfo         `json:"MasterInfo"`
	LiveAircon         LiveAircon         `json:"LiveAircon"`
	UserAirconSettings UserAirconSettings `json:"UserAirconSettings"`
	RemoteZoneInfo     []RemoteZoneInfo   `json:"RemoteZoneInfo"`
	AirconSystem       AirconSystem       `json:"AirconSystem"`
	Alerts             Alerts             `json:"Alerts"`
}

// MasterInfo carries the master controller's sensor readings
type MasterInfo struct {
	LiveTemp        *float64 `json:"LiveTemp_oC"`
	LiveHumidity    *float64 `json:"LiveHumidity_pc"`
	LiveOutdoorTemp *float64 `json:"LiveOutdoorTemp_oC"`
}

// LiveAircon carries live operational data from the unit
type LiveAircon struct {
	CompressorMode string       `json:"CompressorMode"`
	Defrost        bool         `json:"Defrost"`
	ErrCode        int          `json:"ErrCode"`
	Filter         FilterStatus `json:"Filter"`
	// OutdoorUnit is only reported on series with energy monitoring.
	OutdoorUnit *OutdoorUnit `json:"OutdoorUnit,omitempty"`
}

// FilterStatus reports filter maintenance state
type FilterStatus struct {
	NeedsAttention bool `json:"NeedsAttention"`
	TimeToClean    *int `json:"TimeToClean,omitempty"`
}

// OutdoorUnit carries compressor telemetry on energy-capable series
type OutdoorUnit struct {
	CompPower   *float64 `json:"CompPower"`
	CompRunning *bool    `json:"CompRunning,omitempty"`
	CompSpeed   *float64 `json:"CompSpeed,omitempty"`
}

// UserAirconSettings mirrors the user-adjustable settings block
type UserAirconSettings struct {
	IsOn                    bool    `json:"isOn"`
	Mode                    string  `json:"Mode"`
	FanMode                 string  `json:"FanMode"`
	TemperatureSetpointCool float64 `json:"TemperatureSetpoint_Cool_oC"`
	TemperatureSetpointHeat float64 `json:"TemperatureSetpoint_Heat_oC"`
	EnabledZones            []bool  `json:"EnabledZones"`
	AwayMode                bool    `json:"AwayMode"`
	QuietMode               bool    `json:"QuietMode"`
}

// RemoteZoneInfo is the per-zone block of the state document. Airflow
// control fields are only populated on systems with the YourZone feature.
type RemoteZoneInfo struct {
	Title            string   `json:"NV_Title"`
	Exists           bool     `json:"NV_Exists"`
	LiveTemp         *float64 `json:"LiveTemp_oC"`
	LiveHumidity     *float64 `json:"LiveHumidity_pc"`
	SetpointCool     *float64 `json:"TemperatureSetpoint_Cool_oC"`
	SetpointHeat     *float64 `json:"TemperatureSetpoint_Heat_oC"`
	ZonePosition     *int     `json:"ZonePosition"`
	AirflowControl   bool     `json:"NV_VAV"`
	AirflowLocked    bool     `json:"AirflowControlLocked"`
	AirflowSetpoint  *int     `json:"UserAirflowSetting_pc"`
	MaxOpenPosition  *int     `json:"MaxOpenPosition"`
	MinOpenPosition  *int     `json:"MinOpenPosition"`
	CanOperate       bool     `json:"CanOperate"`
	TempControl      bool     `json:"NV_ITC"`
}

// AirconSystem describes the installed hardware
type AirconSystem struct {
	MasterSerial            string       `json:"MasterSerial"`
	MasterWCModel           string       `json:"MasterWCModel"`
	MasterWCFirmwareVersion string       `json:"MasterWCFirmwareVersion"`
	IndoorUnit              *IndoorUnit  `json:"IndoorUnit,omitempty"`
	Peripherals             []Peripheral `json:"Peripherals"`
}

// IndoorUnit identifies the indoor unit model
type IndoorUnit struct {
	ModelNumber string `json:"NV_ModelNumber"`
}

// Peripheral is a wireless sensor or wall controller paired to the system
type Peripheral struct {
	LogicalAddress     int    `json:"LogicalAddress"`
	DeviceType         string `json:"DeviceType"`
	ZoneAssignment     []int  `json:"ZoneAssignment"`
	RemainingBattery   *int   `json:"RemainingBatteryCapacity_pc"`
	Signal             *int   `json:"Signal_of3"`
	ConnectionState    string `json:"ConnectionState"`
	LastConnectionTime string `json:"LastConnectionTime"`
}

// Alerts carries vendor-reported alert flags
type Alerts struct {
	CleanFilter bool `json:"CleanFilter"`
	Defrosting  bool `json:"Defrosting"`
}

// commandEnvelope is the wire shape of POST /api/v0/client/ac-systems/cmds/send
type commandEnvelope struct {
	Command map[string]any `json:"command"`
}

package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
)

// Validation constants for telemetry ranges
const (
	minValidTemperature = -50.0
	maxValidTemperature = 60.0
)

// Normalize turns a raw vendor status document into a Snapshot.
//
// Missing optional fields (energy metrics on non-energy series, airflow
// fields without the capability) become absent values on the snapshot, never
// a failure. Malformed required fields fail the whole cycle with a transient
// KindAPI error so the coordinator retains the last-known-good snapshot.
func Normalize(sys neo.System, status *neo.StatusResponse, now time.Time) (*Snapshot, error) {
	if status == nil {
		return nil, &neo.Error{Kind: neo.KindAPI, Op: "normalize", Msg: "nil status response"}
	}

	state := status.LastKnownState
	if state.UserAirconSettings.Mode == "" && len(state.RemoteZoneInfo) == 0 {
		return nil, &neo.Error{Kind: neo.KindAPI, Op: "normalize", Msg: "status document has no usable state"}
	}

	// The master temperature is the one reading every series reports; a
	// missing or out-of-range value means the document is unusable.
	if state.MasterInfo.LiveTemp == nil {
		return nil, &neo.Error{Kind: neo.KindAPI, Op: "normalize", Msg: "status missing master temperature"}
	}
	if t := *state.MasterInfo.LiveTemp; t < minValidTemperature || t > maxValidTemperature {
		return nil, &neo.Error{Kind: neo.KindAPI, Op: "normalize", Msg: "master temperature out of range"}
	}

	device := normalizeDevice(sys, state)
	main := normalizeMain(state, device)

	zones := make(map[string]*Zone)
	if device.SupportsZones {
		for i, raw := range state.RemoteZoneInfo {
			if !raw.Exists {
				continue
			}
			zone := normalizeZone(i, raw, state.UserAirconSettings.EnabledZones, device)
			attachPeripheral(zone, state.AirconSystem.Peripherals)
			zones[zone.ID] = zone
		}
	}

	return &Snapshot{
		FetchedAt: now,
		Device:    device,
		Main:      main,
		Zones:     zones,
	}, nil
}

func normalizeDevice(sys neo.System, state neo.LastKnownState) Device {
	serial := sys.Serial
	if serial == "" {
		serial = state.AirconSystem.MasterSerial
	}
	name := sys.Description
	if name == "" {
		name = "ActronAir Neo"
	}

	d := Device{
		Serial:          serial,
		Name:            name,
		Model:           state.AirconSystem.MasterWCModel,
		FirmwareVersion: state.AirconSystem.MasterWCFirmwareVersion,
		SupportsZones:   len(state.RemoteZoneInfo) > 0,
		// Energy telemetry only appears on series that report the outdoor unit
		SupportsEnergyMonitoring: state.LiveAircon.OutdoorUnit != nil && state.LiveAircon.OutdoorUnit.CompPower != nil,
	}
	if state.AirconSystem.IndoorUnit != nil {
		d.IndoorModel = state.AirconSystem.IndoorUnit.ModelNumber
	}
	for _, raw := range state.RemoteZoneInfo {
		if raw.Exists && raw.AirflowControl {
			d.SupportsAirflowControl = true
			break
		}
	}
	return d
}

func normalizeMain(state neo.LastKnownState, device Device) MainState {
	settings := state.UserAirconSettings

	fanMode, continuous := splitFanMode(settings.FanMode)

	m := MainState{
		Power:            settings.IsOn,
		Mode:             settings.Mode,
		FanMode:          fanMode,
		FanContinuous:    continuous,
		CompressorMode:   state.LiveAircon.CompressorMode,
		Defrosting:       state.LiveAircon.Defrost || state.Alerts.Defrosting,
		FilterNeedsClean: state.LiveAircon.Filter.NeedsAttention || state.Alerts.CleanFilter,
		AwayMode:         settings.AwayMode,
		QuietMode:        settings.QuietMode,
		IndoorTemp:       state.MasterInfo.LiveTemp,
		IndoorHumidity:   state.MasterInfo.LiveHumidity,
		OutdoorTemp:      state.MasterInfo.LiveOutdoorTemp,
		SetpointCool:     settings.TemperatureSetpointCool,
		SetpointHeat:     settings.TemperatureSetpointHeat,
	}
	if device.SupportsEnergyMonitoring {
		m.CompressorPower = state.LiveAircon.OutdoorUnit.CompPower
	}
	return m
}

func normalizeZone(index int, raw neo.RemoteZoneInfo, enabledZones []bool, device Device) *Zone {
	zone := &Zone{
		ID:           zoneID(index),
		Index:        index,
		Name:         raw.Title,
		Temp:         raw.LiveTemp,
		Humidity:     raw.LiveHumidity,
		SetpointCool: raw.SetpointCool,
		SetpointHeat: raw.SetpointHeat,
	}
	if index < len(enabledZones) {
		zone.Enabled = enabledZones[index]
	}

	// Airflow and damper fields are gated on the capability: when airflow
	// control is off, raw values are dropped rather than surfaced.
	if device.SupportsAirflowControl && raw.AirflowControl {
		zone.AirflowControlEnabled = true
		zone.AirflowLocked = raw.AirflowLocked
		zone.AirflowSetpoint = raw.AirflowSetpoint
		zone.AirflowMinPosition = raw.MinOpenPosition
		zone.AirflowMaxPosition = raw.MaxOpenPosition
		zone.DamperPosition = raw.ZonePosition
	}

	return zone
}

// attachPeripheral copies battery and signal data from the wireless sensor
// assigned to the zone, when one exists.
func attachPeripheral(zone *Zone, peripherals []neo.Peripheral) {
	for _, p := range peripherals {
		for _, assigned := range p.ZoneAssignment {
			// ZoneAssignment is 1-based on the wire
			if assigned == zone.Index+1 {
				zone.BatteryLevel = p.RemainingBattery
				zone.SignalStrength = p.Signal
				return
			}
		}
	}
}

// splitFanMode separates the continuous suffix from the base fan mode
func splitFanMode(wire string) (string, bool) {
	if base, ok := strings.CutSuffix(wire, "+CONT"); ok {
		return base, true
	}
	if base, ok := strings.CutSuffix(wire, "-CONT"); ok {
		return base, true
	}
	return wire, false
}

// zoneID builds the stable zone identifier used across the bridge
func zoneID(index int) string {
	return fmt.Sprintf("zone_%d", index+1)
}

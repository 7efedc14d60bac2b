package neo

import (
	"fmt"
	"strings"
)

// Climate modes accepted by the vendor
const (
	ModeCool = "COOL"
	ModeHeat = "HEAT"
	ModeFan  = "FAN"
	ModeAuto = "AUTO"
)

// Fan modes accepted by the vendor. Continuous operation is expressed as a
// "+CONT" suffix on the wire.
const (
	FanLow  = "LOW"
	FanMed  = "MED"
	FanHigh = "HIGH"
	FanAuto = "AUTO"
)

// Command is a write request against a system's settings. Build one with
// the Set* constructors; an invalid command fails at SendCommand with the
// appropriate error kind.
type Command struct {
	fields map[string]any
	zone   bool
	err    error
}

// envelope produces the vendor wire shape
func (c Command) envelope() commandEnvelope {
	m := make(map[string]any, len(c.fields)+1)
	for k, v := range c.fields {
		m[k] = v
	}
	m["type"] = "set-settings"
	return commandEnvelope{Command: m}
}

func (c Command) validate() error {
	if c.err != nil {
		return c.err
	}
	if len(c.fields) == 0 {
		return &Error{Kind: KindConfig, Op: "send command", Msg: "empty command"}
	}
	return nil
}

// zoneScoped reports whether the command addresses a zone, which routes
// write failures to KindZone.
func (c Command) zoneScoped() bool {
	return c.zone
}

// SetPower turns the system on or off
func SetPower(on bool) Command {
	return Command{fields: map[string]any{"UserAirconSettings.isOn": on}}
}

// SetMode switches the climate mode, powering the system on
func SetMode(mode string) Command {
	switch mode {
	case ModeCool, ModeHeat, ModeFan, ModeAuto:
	default:
		return Command{err: &Error{Kind: KindConfig, Op: "send command", Msg: fmt.Sprintf("unsupported mode %q", mode)}}
	}
	return Command{fields: map[string]any{
		"UserAirconSettings.isOn": true,
		"UserAirconSettings.Mode": mode,
	}}
}

// SetFanMode switches the fan speed, optionally with continuous operation
func SetFanMode(mode string, continuous bool) Command {
	base := strings.SplitN(strings.SplitN(mode, "+", 2)[0], "-", 2)[0]
	switch base {
	case FanLow, FanMed, FanHigh, FanAuto:
	default:
		return Command{err: &Error{Kind: KindConfig, Op: "send command", Msg: fmt.Sprintf("unsupported fan mode %q", mode)}}
	}
	wire := base
	if continuous {
		wire = base + "+CONT"
	}
	return Command{fields: map[string]any{"UserAirconSettings.FanMode": wire}}
}

// SetTemperature adjusts the main setpoint for the cooling or heating side
func SetTemperature(temperature float64, cooling bool) Command {
	key := "UserAirconSettings.TemperatureSetpoint_Heat_oC"
	if cooling {
		key = "UserAirconSettings.TemperatureSetpoint_Cool_oC"
	}
	return Command{fields: map[string]any{key: temperature}}
}

// SetZoneEnabled opens or closes a zone by index (0-based)
func SetZoneEnabled(index int, enabled bool) Command {
	if err := validateZoneIndex(index); err != nil {
		return Command{err: err, zone: true}
	}
	return Command{
		fields: map[string]any{fmt.Sprintf("UserAirconSettings.EnabledZones[%d]", index): enabled},
		zone:   true,
	}
}

// SetZoneTemperature adjusts a zone's setpoint for the cooling or heating side
func SetZoneTemperature(index int, temperature float64, cooling bool) Command {
	if err := validateZoneIndex(index); err != nil {
		return Command{err: err, zone: true}
	}
	side := "Heat"
	if cooling {
		side = "Cool"
	}
	key := fmt.Sprintf("RemoteZoneInfo[%d].TemperatureSetpoint_%s_oC", index, side)
	return Command{fields: map[string]any{key: temperature}, zone: true}
}

// SetZoneAirflow adjusts a zone's airflow percentage. The vendor accepts
// 0-100 in steps of 5.
func SetZoneAirflow(index int, percent int) Command {
	if err := validateZoneIndex(index); err != nil {
		return Command{err: err, zone: true}
	}
	if percent < 0 || percent > 100 || percent%5 != 0 {
		return Command{
			err:  &Error{Kind: KindZone, Op: "send command", Msg: fmt.Sprintf("airflow must be 0-100 in steps of 5, got %d", percent)},
			zone: true,
		}
	}
	key := fmt.Sprintf("RemoteZoneInfo[%d].UserAirflowSetting_pc", index)
	return Command{fields: map[string]any{key: percent}, zone: true}
}

func validateZoneIndex(index int) error {
	if index < 0 {
		return &Error{Kind: KindZone, Op: "send command", Msg: fmt.Sprintf("invalid zone index %d", index)}
	}
	return nil
}

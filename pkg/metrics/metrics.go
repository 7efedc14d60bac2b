// Package metrics exposes the bridge's Prometheus metrics.
//
// HVAC telemetry gauges are updated from each published snapshot; bridge
// health metrics track refresh outcomes via the coordinator's Observer hook.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Descriptors holds all Prometheus metric descriptors for the bridge
type Descriptors struct {
	// System-level metrics (label: serial)
	PowerOn          prometheus.GaugeVec
	IndoorTempC      prometheus.GaugeVec
	IndoorHumidityPc prometheus.GaugeVec
	OutdoorTempC     prometheus.GaugeVec
	SetpointCoolC    prometheus.GaugeVec
	SetpointHeatC    prometheus.GaugeVec
	CompressorPowerW prometheus.GaugeVec
	FilterNeedsClean prometheus.GaugeVec

	// Zone-level metrics (labels: serial, zone_id, zone_name)
	ZoneEnabled         prometheus.GaugeVec
	ZoneTempC           prometheus.GaugeVec
	ZoneHumidityPc      prometheus.GaugeVec
	ZoneSetpointCoolC   prometheus.GaugeVec
	ZoneSetpointHeatC   prometheus.GaugeVec
	ZoneDamperPosition  prometheus.GaugeVec
	ZoneAirflowSetpoint prometheus.GaugeVec
	ZoneBatteryLevel    prometheus.GaugeVec
}

var systemLabels = []string{"serial"}
var zoneLabels = []string{"serial", "zone_id", "zone_name"}

// NewDescriptors creates all HVAC telemetry metrics and registers them with
// reg (prometheus.DefaultRegisterer when nil).
func NewDescriptors(reg prometheus.Registerer) (*Descriptors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	d := &Descriptors{
		PowerOn: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_power_on",
			Help: "Whether the AC system is powered (1 = on, 0 = off)",
		}, systemLabels),

		IndoorTempC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_indoor_temperature_celsius",
			Help: "Master controller temperature in Celsius",
		}, systemLabels),

		IndoorHumidityPc: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_indoor_humidity_percentage",
			Help: "Master controller relative humidity (0-100%)",
		}, systemLabels),

		OutdoorTempC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_outdoor_temperature_celsius",
			Help: "Outdoor unit temperature in Celsius",
		}, systemLabels),

		SetpointCoolC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_setpoint_cool_celsius",
			Help: "Cooling setpoint in Celsius",
		}, systemLabels),

		SetpointHeatC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_setpoint_heat_celsius",
			Help: "Heating setpoint in Celsius",
		}, systemLabels),

		CompressorPowerW: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_compressor_power_watts",
			Help: "Compressor power draw in watts (energy-capable series only)",
		}, systemLabels),

		FilterNeedsClean: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_filter_needs_clean",
			Help: "Whether the filter needs cleaning (1 = yes, 0 = no)",
		}, systemLabels),

		ZoneEnabled: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_enabled",
			Help: "Whether the zone is enabled (1 = enabled, 0 = disabled)",
		}, zoneLabels),

		ZoneTempC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_temperature_celsius",
			Help: "Zone temperature in Celsius",
		}, zoneLabels),

		ZoneHumidityPc: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_humidity_percentage",
			Help: "Zone relative humidity (0-100%)",
		}, zoneLabels),

		ZoneSetpointCoolC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_setpoint_cool_celsius",
			Help: "Zone cooling setpoint in Celsius",
		}, zoneLabels),

		ZoneSetpointHeatC: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_setpoint_heat_celsius",
			Help: "Zone heating setpoint in Celsius",
		}, zoneLabels),

		ZoneDamperPosition: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_damper_position",
			Help: "Zone damper position (0-100%, airflow-capable zones only)",
		}, zoneLabels),

		ZoneAirflowSetpoint: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_airflow_setpoint",
			Help: "Zone airflow setpoint (0-100%, airflow-capable zones only)",
		}, zoneLabels),

		ZoneBatteryLevel: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actron_zone_battery_level",
			Help: "Zone sensor battery level (0-100%)",
		}, zoneLabels),
	}

	collectors := []prometheus.Collector{
		&d.PowerOn, &d.IndoorTempC, &d.IndoorHumidityPc, &d.OutdoorTempC,
		&d.SetpointCoolC, &d.SetpointHeatC, &d.CompressorPowerW, &d.FilterNeedsClean,
		&d.ZoneEnabled, &d.ZoneTempC, &d.ZoneHumidityPc,
		&d.ZoneSetpointCoolC, &d.ZoneSetpointHeatC,
		&d.ZoneDamperPosition, &d.ZoneAirflowSetpoint, &d.ZoneBatteryLevel,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Reset clears all metric values (useful for testing)
func (d *Descriptors) Reset() {
	d.PowerOn.Reset()
	d.IndoorTempC.Reset()
	d.IndoorHumidityPc.Reset()
	d.OutdoorTempC.Reset()
	d.SetpointCoolC.Reset()
	d.SetpointHeatC.Reset()
	d.CompressorPowerW.Reset()
	d.FilterNeedsClean.Reset()
	d.ZoneEnabled.Reset()
	d.ZoneTempC.Reset()
	d.ZoneHumidityPc.Reset()
	d.ZoneSetpointCoolC.Reset()
	d.ZoneSetpointHeatC.Reset()
	d.ZoneDamperPosition.Reset()
	d.ZoneAirflowSetpoint.Reset()
	d.ZoneBatteryLevel.Reset()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

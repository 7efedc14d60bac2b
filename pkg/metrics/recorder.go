package metrics

import (
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder updates telemetry gauges from published snapshots and tracks
// bridge health. It implements coordinator.Observer; register it with
// Coordinator.AddObserver.
type Recorder struct {
	descriptors *Descriptors
	health      *BridgeHealth
}

// BridgeHealth holds Prometheus metrics for bridge internal monitoring
type BridgeHealth struct {
	// Refresh duration histogram (in seconds)
	RefreshDurationSeconds prometheus.Histogram

	// Refresh error counter
	RefreshErrorsTotal prometheus.Counter

	// Consecutive transient failure streak
	ConsecutiveFailures prometheus.Gauge

	// Snapshot staleness (1 = serving last-known-good past a failure)
	SnapshotStale prometheus.Gauge

	// Last successful refresh timestamp (unix seconds)
	LastRefreshSuccessUnix prometheus.Gauge

	// Build info gauge
	BuildInfo prometheus.Gauge
}

// NewBridgeHealth creates and registers bridge health metrics
func NewBridgeHealth(reg prometheus.Registerer) (*BridgeHealth, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	bh := &BridgeHealth{
		RefreshDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actron_bridge_refresh_duration_seconds",
			Help:    "Time taken to fetch and normalize state from the Neo API in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 6),
		}),

		RefreshErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actron_bridge_refresh_errors_total",
			Help: "Total number of failed refresh cycles",
		}),

		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actron_bridge_consecutive_failures",
			Help: "Length of the current consecutive transient failure streak",
		}),

		SnapshotStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actron_bridge_snapshot_stale",
			Help: "Set to 1 while the bridge serves last-known-good data past a failed refresh",
		}),

		LastRefreshSuccessUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actron_bridge_last_refresh_success_unix",
			Help: "Unix timestamp of the last successful refresh",
		}),

		BuildInfo: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actron_bridge_build_info",
			Help: "Build information for the bridge (value is always 1)",
		}),
	}

	collectors := []prometheus.Collector{
		bh.RefreshDurationSeconds, bh.RefreshErrorsTotal, bh.ConsecutiveFailures,
		bh.SnapshotStale, bh.LastRefreshSuccessUnix, bh.BuildInfo,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	bh.BuildInfo.Set(1)
	return bh, nil
}

// NewRecorder creates a Recorder over existing descriptors and health metrics
func NewRecorder(descriptors *Descriptors, health *BridgeHealth) *Recorder {
	return &Recorder{descriptors: descriptors, health: health}
}

// RefreshSucceeded implements coordinator.Observer
func (r *Recorder) RefreshSucceeded(duration time.Duration, snap *coordinator.Snapshot) {
	r.health.RefreshDurationSeconds.Observe(duration.Seconds())
	r.health.ConsecutiveFailures.Set(0)
	r.health.SnapshotStale.Set(0)
	r.health.LastRefreshSuccessUnix.Set(float64(time.Now().Unix()))
	r.record(snap)
}

// RefreshFailed implements coordinator.Observer
func (r *Recorder) RefreshFailed(duration time.Duration, err error) {
	r.health.RefreshDurationSeconds.Observe(duration.Seconds())
	r.health.RefreshErrorsTotal.Inc()
	r.health.ConsecutiveFailures.Inc()
	r.health.SnapshotStale.Set(1)
}

// record writes one snapshot into the telemetry gauges
func (r *Recorder) record(snap *coordinator.Snapshot) {
	d := r.descriptors
	serial := snap.Device.Serial

	d.PowerOn.WithLabelValues(serial).Set(boolValue(snap.Main.Power))
	d.FilterNeedsClean.WithLabelValues(serial).Set(boolValue(snap.Main.FilterNeedsClean))
	d.SetpointCoolC.WithLabelValues(serial).Set(snap.Main.SetpointCool)
	d.SetpointHeatC.WithLabelValues(serial).Set(snap.Main.SetpointHeat)

	if snap.Main.IndoorTemp != nil {
		d.IndoorTempC.WithLabelValues(serial).Set(*snap.Main.IndoorTemp)
	}
	if snap.Main.IndoorHumidity != nil {
		d.IndoorHumidityPc.WithLabelValues(serial).Set(*snap.Main.IndoorHumidity)
	}
	if snap.Main.OutdoorTemp != nil {
		d.OutdoorTempC.WithLabelValues(serial).Set(*snap.Main.OutdoorTemp)
	}
	if snap.Main.CompressorPower != nil {
		d.CompressorPowerW.WithLabelValues(serial).Set(*snap.Main.CompressorPower)
	}

	for _, zone := range snap.Zones {
		labels := []string{serial, zone.ID, zone.Name}
		d.ZoneEnabled.WithLabelValues(labels...).Set(boolValue(zone.Enabled))

		if zone.Temp != nil {
			d.ZoneTempC.WithLabelValues(labels...).Set(*zone.Temp)
		}
		if zone.Humidity != nil {
			d.ZoneHumidityPc.WithLabelValues(labels...).Set(*zone.Humidity)
		}
		if zone.SetpointCool != nil {
			d.ZoneSetpointCoolC.WithLabelValues(labels...).Set(*zone.SetpointCool)
		}
		if zone.SetpointHeat != nil {
			d.ZoneSetpointHeatC.WithLabelValues(labels...).Set(*zone.SetpointHeat)
		}
		if zone.DamperPosition != nil {
			d.ZoneDamperPosition.WithLabelValues(labels...).Set(float64(*zone.DamperPosition))
		}
		if zone.AirflowSetpoint != nil {
			d.ZoneAirflowSetpoint.WithLabelValues(labels...).Set(float64(*zone.AirflowSetpoint))
		}
		if zone.BatteryLevel != nil {
			d.ZoneBatteryLevel.WithLabelValues(labels...).Set(float64(*zone.BatteryLevel))
		}
	}
}

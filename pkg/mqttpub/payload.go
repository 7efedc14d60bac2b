package mqttpub

import (
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
)

// systemStatus is the wire payload of the per-system state topic
type systemStatus struct {
	FetchedAt time.Time              `json:"fetched_at"`
	Stale     bool                   `json:"stale"`
	Device    coordinator.Device     `json:"device"`
	Main      coordinator.MainState  `json:"main"`
}

func newSystemStatus(snap *coordinator.Snapshot) systemStatus {
	return systemStatus{
		FetchedAt: snap.FetchedAt,
		Stale:     snap.Stale,
		Device:    snap.Device,
		Main:      snap.Main,
	}
}

// zoneStatus is the wire payload of the per-zone state topic. Airflow
// fields carry over from the zone (absent when the capability is off);
// Available reflects the lock flag: a locked zone is unavailable to
// consumers, not merely read-only.
type zoneStatus struct {
	*coordinator.Zone
	Available bool `json:"available"`
}

func newZoneStatus(zone *coordinator.Zone) zoneStatus {
	available := true
	if zone.AirflowControlEnabled && zone.AirflowLocked {
		available = false
	}
	return zoneStatus{Zone: zone, Available: available}
}

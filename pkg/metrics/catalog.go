// Package metrics normalizes raw device readings into a fixed set of
// named samples and holds the most recently published set for export.
package metrics

import (
	"encoding/json"
	"math"
	"time"
)

// Metric names are a published contract consumed by scrape clients.
const (
	PowerWatts           = "device_power_watts"
	EnergyWattHoursTotal = "device_energy_watt_hours_total"
	State                = "device_state"
	TodayEnergyWattHours = "device_today_energy_watt_hours"
	OnSeconds            = "device_on_seconds"
	TodayOnSeconds       = "device_today_on_seconds"
	TotalOnSeconds       = "device_total_on_seconds"
	ScrapeSuccess        = "scrape_success"
)

// ValueType tags a sample as a gauge or a counter.
type ValueType int

const (
	Gauge ValueType = iota
	Counter
)

// Descriptor describes one metric of the fixed catalog.
type Descriptor struct {
	Name string
	Type ValueType
	Unit string
	Help string
}

// Catalog is the fixed schema derived from one reading, in exposition
// order. The mapper emits exactly these names on every call.
var Catalog = []Descriptor{
	{PowerWatts, Gauge, "watts", "Instantaneous power drawn by the attached load."},
	{EnergyWattHoursTotal, Counter, "watt_hours", "Lifetime energy consumed; monotonic across device-side counter resets."},
	{State, Gauge, "", "1 if the plug output is on (standby included), 0 if off."},
	{TodayEnergyWattHours, Gauge, "watt_hours", "Energy consumed since local midnight."},
	{OnSeconds, Gauge, "seconds", "Time the output has been on since it last switched on."},
	{TodayOnSeconds, Gauge, "seconds", "Time the output has been on since local midnight."},
	{TotalOnSeconds, Gauge, "seconds", "Lifetime on-time as reported by the device."},
}

// ScrapeSuccessDesc reflects poll outcome rather than device content,
// so it is produced by the registry side, not the mapper.
var ScrapeSuccessDesc = Descriptor{ScrapeSuccess, Gauge, "", "1 if the most recent device poll succeeded, 0 otherwise."}

// Sample is one named, typed value. Immutable once created.
type Sample struct {
	Name  string
	Type  ValueType
	Unit  string
	Value float64
}

// Set is the ordered samples produced from one reading. All samples
// share the acquisition timestamp. Sets must not be mutated after
// creation; the registry hands them out to concurrent readers.
type Set struct {
	Samples     []Sample
	CollectedAt time.Time
	Address     string
	DeviceType  string
}

// MarshalJSON renders the set as a flat object keyed by metric name,
// the shape the one-shot mode prints. NaN samples are omitted since
// JSON has no representation for them.
func (s Set) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Samples)+3)
	for _, smp := range s.Samples {
		if math.IsNaN(smp.Value) {
			continue
		}
		m[smp.Name] = smp.Value
	}
	if s.Address != "" {
		m["address"] = s.Address
	}
	if s.DeviceType != "" {
		m["device_type"] = s.DeviceType
	}
	m["collection_time"] = s.CollectedAt.UTC().Format(time.RFC3339)
	return json.Marshal(m)
}

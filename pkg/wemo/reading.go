package wemo

import "time"

// Reading is the raw result of one GetInsightParams exchange. Values
// keep the device's native units (milliwatts, milliwatt-minutes);
// normalization to watts and watt-hours happens in the metrics mapper.
// Numeric fields the device reported in an unparseable form are NaN.
type Reading struct {
	// RawState is the switch state as reported by the firmware:
	// 0 off, 1 on, 8 on with the load in standby.
	RawState int

	OnForSeconds   float64
	OnTodaySeconds float64
	TotalOnSeconds float64

	PowerMilliwatts float64

	// Energy totals in milliwatt-minutes, the unit the Insight
	// firmware reports them in.
	TodayEnergyMilliwattMinutes    float64
	LifetimeEnergyMilliwattMinutes float64

	DeviceType  string
	Address     string
	CollectedAt time.Time
}

// On reports whether the plug output is energized. Standby (state 8)
// counts as on.
func (r *Reading) On() bool {
	return r.RawState != 0
}

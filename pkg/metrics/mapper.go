package metrics

import (
	"math"

	"github.com/wemokit/wemoscrape/pkg/wemo"
)

// The Insight firmware reports energy in milliwatt-minutes.
const milliwattMinutesPerWattHour = 60000

// Mapper converts raw readings into the fixed catalog. It never fails:
// malformed numeric fields arrive as NaN and pass through unchanged.
//
// The only state it keeps is what is needed to re-base the lifetime
// energy counter: the firmware zeroes its total on reboot, and a
// counter handed to scrape clients must never go backwards.
type Mapper struct {
	haveLast  bool
	lastRawWh float64
	offsetWh  float64
}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Map produces the catalog samples for one reading, in catalog order.
func (m *Mapper) Map(r *wemo.Reading) Set {
	var state float64
	if r.On() {
		state = 1
	}
	values := [...]float64{
		r.PowerMilliwatts / 1000,
		m.rebase(r.LifetimeEnergyMilliwattMinutes / milliwattMinutesPerWattHour),
		state,
		r.TodayEnergyMilliwattMinutes / milliwattMinutesPerWattHour,
		r.OnForSeconds,
		r.OnTodaySeconds,
		r.TotalOnSeconds,
	}
	samples := make([]Sample, len(Catalog))
	for i, d := range Catalog {
		samples[i] = Sample{Name: d.Name, Type: d.Type, Unit: d.Unit, Value: values[i]}
	}
	return Set{
		Samples:     samples,
		CollectedAt: r.CollectedAt,
		Address:     r.Address,
		DeviceType:  r.DeviceType,
	}
}

// rebase absorbs device-side counter resets. When the raw total drops,
// the previous total is folded into the offset so the published value
// keeps climbing instead of emitting a negative delta downstream.
func (m *Mapper) rebase(rawWh float64) float64 {
	if math.IsNaN(rawWh) {
		return rawWh
	}
	if m.haveLast && rawWh < m.lastRawWh {
		m.offsetWh += m.lastRawWh
	}
	m.haveLast = true
	m.lastRawWh = rawWh
	return m.offsetWh + rawWh
}

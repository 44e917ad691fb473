package cycle

import (
	"encoding/json"
	"math"
	"time"
)

// Record holds the derived metrics of one cycle. Means over windows without
// samples are NaN, and so is anything derived from them.
type Record struct {
	Start    time.Time
	End      time.Time
	Midpoint time.Time

	Power    float64 // mean over [Start, End)
	PowerExt float64 // mean over the extended window, COP denominator
	Heat     float64
	HeatExt  float64 // mean over the extended window, COP numerator
	Flow     float64
	Entering float64
	Leaving  float64
	Outdoor  float64

	COP                  float64
	HeatDeltaT           float64 // leaving - entering
	EnteringOutdoorDelta float64 // entering - outdoor, the temperature lift
	DurationMinutes      float64
	Age                  time.Duration
}

// Field names accepted by Record.Field.
const (
	FieldPower                = "power"
	FieldPowerExt             = "power_ext"
	FieldHeat                 = "heat"
	FieldHeatExt              = "heat_ext"
	FieldFlow                 = "flow"
	FieldEntering             = "entering_t"
	FieldLeaving              = "leaving_t"
	FieldOutdoor              = "out_t"
	FieldCOP                  = "cop"
	FieldHeatDeltaT           = "delta_t"
	FieldEnteringOutdoorDelta = "entering_out_delta_t"
	FieldDuration             = "duration_min"
	FieldAgeHours             = "age_hours"
	FieldMidpoint             = "midpoint"
)

var fieldNames = []string{
	FieldPower, FieldPowerExt, FieldHeat, FieldHeatExt, FieldFlow, FieldEntering,
	FieldLeaving, FieldOutdoor, FieldCOP, FieldHeatDeltaT, FieldEnteringOutdoorDelta,
	FieldDuration, FieldAgeHours, FieldMidpoint,
}

// FieldNames lists the names Field understands, in display order.
func FieldNames() []string {
	out := make([]string, len(fieldNames))
	copy(out, fieldNames)
	return out
}

// Field returns the named numeric field. The midpoint is returned as Unix
// seconds. ok is false for unknown names.
func (r Record) Field(name string) (v float64, ok bool) {
	switch name {
	case FieldPower:
		return r.Power, true
	case FieldPowerExt:
		return r.PowerExt, true
	case FieldHeat:
		return r.Heat, true
	case FieldHeatExt:
		return r.HeatExt, true
	case FieldFlow:
		return r.Flow, true
	case FieldEntering:
		return r.Entering, true
	case FieldLeaving:
		return r.Leaving, true
	case FieldOutdoor:
		return r.Outdoor, true
	case FieldCOP:
		return r.COP, true
	case FieldHeatDeltaT:
		return r.HeatDeltaT, true
	case FieldEnteringOutdoorDelta:
		return r.EnteringOutdoorDelta, true
	case FieldDuration:
		return r.DurationMinutes, true
	case FieldAgeHours:
		return r.Age.Hours(), true
	case FieldMidpoint:
		return float64(r.Midpoint.UnixNano()) / float64(time.Second), true
	}
	return math.NaN(), false
}

// MarshalJSON writes NaN fields as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fieldNames)+3)
	for _, name := range fieldNames {
		if name == FieldMidpoint {
			continue
		}
		v, _ := r.Field(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[name] = nil
			continue
		}
		out[name] = v
	}
	out["start"] = r.Start
	out["end"] = r.End
	out[FieldMidpoint] = r.Midpoint
	return json.Marshal(out)
}

// Recency maps an age onto a (0, 1] weight halving every halfLife. It drives
// marker size and colour on charts and is never stored. A non-positive
// halfLife disables the decay.
func Recency(age, halfLife time.Duration) float64 {
	if halfLife <= 0 || age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

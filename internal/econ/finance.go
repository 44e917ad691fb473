package econ

import "math"

// Pattern returns the yearly multiplier for a cost escalating at esc per year
// over life years: 0 for the installation year, then 1, (1+esc), (1+esc)^2 ...
func Pattern(esc float64, life int) []float64 {
	if life < 1 {
		return []float64{0}
	}
	out := make([]float64, life+1)
	f := 1.0
	for i := 1; i <= life; i++ {
		out[i] = f
		f *= 1 + esc
	}
	return out
}

// NPV discounts values[t] by (1+rate)^t, with the first value undiscounted.
func NPV(rate float64, values []float64) float64 {
	var sum float64
	d := 1.0
	for _, v := range values {
		sum += v / d
		d *= 1 + rate
	}
	return sum
}

const (
	irrLow       = -0.99
	irrHigh      = 10.0
	irrGridSteps = 2000
	irrTolerance = 1e-10
)

// IRR returns the rate at which NPV is zero. When several rates qualify the
// one closest to zero wins. ok is false when there is none in (-99%, 1000%].
func IRR(values []float64) (rate float64, ok bool) {
	best := math.NaN()
	step := (irrHigh - irrLow) / irrGridSteps
	lo := irrLow
	fLo := NPV(lo, values)
	for i := 1; i <= irrGridSteps; i++ {
		hi := irrLow + float64(i)*step
		fHi := NPV(hi, values)
		var root float64
		switch {
		case fLo == 0:
			root = lo
		case fLo*fHi < 0:
			root = bisect(values, lo, hi, fLo)
		default:
			lo, fLo = hi, fHi
			continue
		}
		if math.IsNaN(best) || math.Abs(root) < math.Abs(best) {
			best = root
		}
		lo, fLo = hi, fHi
	}
	if fLo == 0 && (math.IsNaN(best) || math.Abs(lo) < math.Abs(best)) {
		best = lo
	}
	return best, !math.IsNaN(best)
}

func bisect(values []float64, lo, hi, fLo float64) float64 {
	for hi-lo > irrTolerance {
		mid := (lo + hi) / 2
		fMid := NPV(mid, values)
		if fMid == 0 {
			return mid
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return (lo + hi) / 2
}

package control

// DiscreteIntegral is the trapezoidal area under a series of datapoints,
// clamped to adjustable bounds. The averaged pair sums are kept doubled
// internally and folded back on read, avoiding a division per add; the
// bounds carry the same 2000x scale (2 for the fold, 1000 for the value
// fixed point).
type DiscreteIntegral struct {
	sum    int64
	lb, ub int64

	prevT  int64
	prevV  int64
	primed bool
}

// NewIntegral returns a zeroed integral with the given bounds.
func NewIntegral(lowerBound, upperBound float32) *DiscreteIntegral {
	i := &DiscreteIntegral{}
	i.SetBounds(lowerBound, upperBound)
	return i
}

// SetBounds replaces the clamp range. The PID recomputes these every tick
// for anti-windup.
func (i *DiscreteIntegral) SetBounds(lowerBound, upperBound float32) {
	i.lb = int64(2000 * lowerBound)
	i.ub = int64(2000 * upperBound)
}

// AddDatapoint folds in one (ms, value) observation. The first point only
// primes the integral and contributes no area.
func (i *DiscreteIntegral) AddDatapoint(tMs int64, v float32) {
	fv := int64(1000 * v)
	if i.primed {
		i.sum += (fv + i.prevV) * (tMs - i.prevT)
	}
	i.primed = true
	i.prevT = tMs
	i.prevV = fv
}

// Read clamps the running sum to the bounds and returns the area in
// value-units times milliseconds.
func (i *DiscreteIntegral) Read() float32 {
	if i.sum < i.lb {
		i.sum = i.lb
	}
	if i.sum > i.ub {
		i.sum = i.ub
	}
	return float32(i.sum) / 2000
}

// Reset clears the area and the primed point.
func (i *DiscreteIntegral) Reset() {
	i.sum = 0
	i.prevT = 0
	i.prevV = 0
	i.primed = false
}

// Package control holds the boiler and pump regulation primitives: a
// least-squares discrete derivative, a clamped discrete integral, the PID
// controller built from them, and the thermal-runaway watcher.
//
// The derivative and integral keep their series in fixed point: values are
// scaled by 1000 into int32 and summed in int64. The derivative rebases
// its origin whenever a stored coordinate approaches 2^24 so the quadratic
// accumulators never lose precision over long runs.
package control

import "brewcode-go/hw"

// shiftAtVal is the largest relative coordinate kept before rebasing.
const shiftAtVal = 1<<24 - 1

type fxpoint struct {
	t int32 // ms, origin-relative
	v int32 // value*1000, origin-relative
}

// DiscreteDerivative is the slope of best fit over the datapoints of the
// last filter-span milliseconds. Points arriving closer together than the
// sample rate are dropped.
type DiscreteDerivative struct {
	clk          hw.Clock
	filterSpanMs int32
	sampleRateMs int32

	data    []fxpoint
	start   int
	n       int
	originT int64
	originV int64

	sumV, sumT, sumVT, sumTT int64
}

// NewDerivative returns an empty derivative window.
func NewDerivative(clk hw.Clock, filterSpanMs, sampleRateMs int32) *DiscreteDerivative {
	d := &DiscreteDerivative{
		clk:          clk,
		filterSpanMs: filterSpanMs,
		sampleRateMs: sampleRateMs,
		data:         make([]fxpoint, 16),
	}
	return d
}

// Reset discards all datapoints and re-zeroes the origin.
func (d *DiscreteDerivative) Reset() {
	d.start = 0
	d.n = 0
	d.originT = 0
	d.originV = 0
	d.sumV, d.sumT, d.sumVT, d.sumTT = 0, 0, 0, 0
}

func (d *DiscreteDerivative) at(offset int) *fxpoint {
	return &d.data[(d.start+offset)%len(d.data)]
}

func (d *DiscreteDerivative) latest() *fxpoint {
	if d.n == 0 {
		return nil
	}
	return d.at(d.n - 1)
}

// removeStart drops the oldest point and its contributions to the sums.
func (d *DiscreteDerivative) removeStart() {
	if d.n == 0 {
		return
	}
	p := d.data[d.start]
	d.sumV -= int64(p.v)
	d.sumT -= int64(p.t)
	d.sumVT -= int64(p.t) * int64(p.v)
	d.sumTT -= int64(p.t) * int64(p.t)
	d.start = (d.start + 1) % len(d.data)
	d.n--
}

// removeOld drops points older than the filter span behind curT, but never
// below two points.
func (d *DiscreteDerivative) removeOld(curT int32) {
	for d.n > 2 && curT-d.data[d.start].t > d.filterSpanMs {
		d.removeStart()
	}
}

// grow doubles the ring, linearizing the data at index 0.
func (d *DiscreteDerivative) grow() {
	next := make([]fxpoint, 2*len(d.data))
	for i := 0; i < d.n; i++ {
		next[i] = *d.at(i)
	}
	d.data = next
	d.start = 0
}

func (d *DiscreteDerivative) append(p fxpoint) {
	*d.at(d.n) = p
	d.sumV += int64(p.v)
	d.sumT += int64(p.t)
	d.sumVT += int64(p.t) * int64(p.v)
	d.sumTT += int64(p.t) * int64(p.t)
	d.n++
}

// rebase shifts the origin to the oldest point when the newest relative
// coordinate outgrows the fixed-point range. Linear sums shift by algebra;
// the quadratic sums are recomputed from the shifted points.
func (d *DiscreteDerivative) rebase() {
	last := d.latest()
	if last == nil || (last.t <= shiftAtVal && last.v <= shiftAtVal) {
		return
	}
	shift := d.data[d.start]
	d.originT += int64(shift.t)
	d.originV += int64(shift.v)
	d.sumT -= int64(shift.t) * int64(d.n)
	d.sumV -= int64(shift.v) * int64(d.n)
	d.sumVT = 0
	d.sumTT = 0
	for i := 0; i < d.n; i++ {
		p := d.at(i)
		p.t -= shift.t
		p.v -= shift.v
		d.sumVT += int64(p.t) * int64(p.v)
		d.sumTT += int64(p.t) * int64(p.t)
	}
}

// AddDatapoint folds in one (ms, value) observation. The point is dropped
// when it arrives before the sample-rate gap has passed.
func (d *DiscreteDerivative) AddDatapoint(tMs int64, v float32) {
	p := fxpoint{
		t: int32(tMs - d.originT),
		v: int32(1000*v) - int32(d.originV),
	}
	if last := d.latest(); last != nil && p.t-last.t < d.sampleRateMs {
		return
	}
	d.removeOld(p.t)
	if d.n == len(d.data) {
		d.grow()
	}
	d.append(p)
	d.rebase()
}

// AddValue stamps v with the current time and adds it.
func (d *DiscreteDerivative) AddValue(v float32) {
	d.AddDatapoint(d.clk.NowUs()/1000, v)
}

// Read returns the least-squares slope in value units per second. Fewer
// than two points read as 0.
func (d *DiscreteDerivative) Read() float32 {
	d.removeOld(int32(d.clk.NowUs()/1000 - d.originT))
	if d.n < 2 {
		return 0
	}
	n := int64(d.n)
	den := float32(d.sumTT*n - d.sumT*d.sumT)
	if den == 0 {
		return 0
	}
	// Values carry a 1000x fixed-point scale and times are in ms, so the
	// raw slope is already value units per second.
	return float32(d.sumVT*n-d.sumT*d.sumV) / den
}

// Len reports the number of stored datapoints.
func (d *DiscreteDerivative) Len() int { return d.n }

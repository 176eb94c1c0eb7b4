package control

import "brewcode-go/hw"

// noWindup bounds leave the integral effectively unclamped until the first
// tick recomputes them.
const (
	noWindupLB = -2e9
	noWindupUB = 2e9
)

// Gains are the PID gains plus the feed-forward gain.
type Gains struct {
	P, I, D, F float32
}

// Sensor supplies one process value per call.
type Sensor interface {
	Read() float32
}

// SensorFunc adapts a closure to Sensor.
type SensorFunc func() float32

func (f SensorFunc) Read() float32 { return f() }

// Plant applies a controller input to the system.
type Plant interface {
	Apply(u float32)
}

// PlantFunc adapts a closure to Plant.
type PlantFunc func(float32)

func (f PlantFunc) Apply(u float32) { f(u) }

// Viewer receives the individual terms of the last computed input.
type Viewer struct {
	P, I, D, FF, Bias float32
}

// PID tracks a setpoint with proportional, integral, derivative,
// feed-forward, and bias terms. The derivative runs over the process
// variable, not the error, so setpoint steps cause no derivative kick.
// The integral bounds are recomputed every tick so that the summed input
// lands exactly inside the input clamp (anti-windup at the clamp).
type PID struct {
	clk   hw.Clock
	gains Gains

	setpoint    float32
	feedback    Sensor
	feedforward Sensor // optional
	plant       Plant  // optional

	errSum   *DiscreteIntegral
	fbSlope  *DiscreteDerivative
	tickMs   int64
	nextTick int64
	lastU    float32
	bias     float32
	uLB, uUB float32
}

// NewPID assembles a controller. feedforward and plant may be nil. tickMs
// is both the minimum time between ticks and the derivative sample rate;
// derivSpanMs is the derivative's sliding-window length.
func NewPID(clk hw.Clock, gains Gains, feedback Sensor, feedforward Sensor, plant Plant,
	uLB, uUB float32, tickMs int64, derivSpanMs int32) *PID {
	return &PID{
		clk:         clk,
		gains:       gains,
		feedback:    feedback,
		feedforward: feedforward,
		plant:       plant,
		errSum:      NewIntegral(noWindupLB, noWindupUB),
		fbSlope:     NewDerivative(clk, derivSpanMs, int32(tickMs)),
		tickMs:      tickMs,
		uLB:         uLB,
		uUB:         uUB,
	}
}

// SetSetpoint updates the tracking target.
func (c *PID) SetSetpoint(sp float32) { c.setpoint = sp }

// Setpoint returns the current tracking target.
func (c *PID) Setpoint() float32 { return c.setpoint }

// SetBias sets the static bias term.
func (c *PID) SetBias(b float32) { c.bias = b }

// Tick computes and applies a new input, or returns the cached one when
// called again before the dwell time has passed. viewer may be nil.
func (c *PID) Tick(viewer *Viewer) float32 {
	now := c.clk.NowUs()
	if now < c.nextTick {
		return c.lastU
	}
	c.nextTick = now + c.tickMs*1000

	tMs := now / 1000
	x := c.feedback.Read()
	e := c.setpoint - x

	var ff float32
	if c.feedforward != nil {
		ff = c.feedforward.Read()
	}
	uP := c.gains.P * e
	uB := c.bias
	uFF := c.gains.F * ff

	// Integral term. Bounds are set so uP+uI+uFF+uB cannot leave the
	// input clamp, whatever the clamped integral comes out to.
	var eSum float32
	if c.gains.I != 0 {
		c.errSum.SetBounds(
			(c.uLB-uP-uB-uFF)/c.gains.I,
			(c.uUB-uP-uB-uFF)/c.gains.I,
		)
		c.errSum.AddDatapoint(tMs, e)
		eSum = c.errSum.Read()
	}
	uI := c.gains.I * eSum

	// Derivative term over the feedback value.
	var slope float32
	if c.gains.D != 0 {
		c.fbSlope.AddDatapoint(tMs, x)
		slope = c.fbSlope.Read()
	}
	uD := c.gains.D * slope

	u := uP + uI + uD + uFF + uB
	if viewer != nil {
		viewer.P = uP
		viewer.I = uI
		viewer.D = uD
		viewer.FF = uFF
		viewer.Bias = uB
	}
	if u < c.uLB {
		u = c.uLB
	}
	if u > c.uUB {
		u = c.uUB
	}
	if c.plant != nil {
		c.plant.Apply(u)
	}
	c.lastU = u
	return u
}

// AtSetpoint reports whether the feedback is within tol of the setpoint.
func (c *PID) AtSetpoint(tol float32) bool {
	err := c.feedback.Read() - c.setpoint
	return err >= -tol && err <= tol
}

// Reset clears the integral and the derivative window. The cached input
// is kept.
func (c *PID) Reset() {
	c.fbSlope.Reset()
	c.errSum.Reset()
}

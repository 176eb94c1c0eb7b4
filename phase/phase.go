// Package phase drives an SSR relative to mains zero-crossings. Each
// accepted zero-cross schedules an off alarm at 3/4 period and an on alarm
// at a duty-dependent delay, so the load sees the tail of every half-wave.
// Built for inductive loads such as vibratory pumps.
package phase

import (
	"sync/atomic"

	"brewcode-go/errcode"
	"brewcode-go/hw"
)

const (
	// 60 Hz mains half-wave bookkeeping, in microseconds.
	periodUs       = 16667
	threeQuarterUs = 12500
	acHotMarginUs  = 100
	// MaxDuty is the top duty index of the energy-equalized table.
	MaxDuty = 127
)

// timeoutsUs[d] is the delay from the (shifted) zero-cross to switch-on.
// Spaced so the area under one 60 Hz half-sine is split into 127 equal
// boxes: uniform steps in delivered energy, not in time. Index 0 never
// fires; index 127 turns on at the crossing itself.
var timeoutsUs = [MaxDuty + 1]uint16{
	8333, 7862, 7666, 7515, 7387, 7274, 7171, 7076, 6987, 6904, 6824, 6749, 6676, 6606, 6538, 6472,
	6408, 6346, 6286, 6226, 6168, 6112, 6056, 6001, 5947, 5895, 5842, 5791, 5740, 5690, 5641, 5592,
	5544, 5496, 5448, 5401, 5355, 5309, 5263, 5217, 5172, 5127, 5083, 5039, 4995, 4951, 4907, 4864,
	4821, 4778, 4735, 4692, 4650, 4607, 4565, 4523, 4481, 4439, 4397, 4355, 4313, 4271, 4229, 4188,
	4146, 4104, 4062, 4020, 3979, 3937, 3895, 3853, 3811, 3768, 3726, 3684, 3641, 3598, 3556, 3513,
	3469, 3426, 3382, 3339, 3295, 3250, 3206, 3161, 3116, 3071, 3025, 2979, 2932, 2885, 2838, 2790,
	2741, 2693, 2643, 2593, 2542, 2491, 2439, 2386, 2332, 2277, 2222, 2165, 2107, 2048, 1987, 1925,
	1861, 1795, 1728, 1658, 1585, 1509, 1430, 1346, 1257, 1162, 1060, 947, 819, 668, 471, 0,
}

// Config describes one phase-control channel.
type Config struct {
	ZeroCrossPin uint8
	OutPin       uint8
	// ShiftUs compensates the zero-cross detector's propagation delay.
	// May be negative.
	ShiftUs int64
	// Event is the edge that marks a zero-cross.
	Event hw.Events
}

// Controller owns one SSR output. The zero-cross handler and the alarms
// run in interrupt context; duty and zero-cross time are single-word
// shared fields.
type Controller struct {
	clk   hw.Clock
	sched hw.AlarmScheduler
	out   hw.GPIOPin
	shift int64

	zcTimeUs atomic.Int64
	duty     atomic.Uint32
}

// New configures the pins and hooks the zero-cross handler into the
// dispatcher.
func New(pins hw.PinFactory, d *hw.Dispatcher, clk hw.Clock, sched hw.AlarmScheduler, cfg Config) (*Controller, error) {
	if cfg.Event != hw.EventRise && cfg.Event != hw.EventFall {
		return nil, errcode.InvalidParams
	}
	out, ok := pins.ByNumber(int(cfg.OutPin))
	if !ok {
		return nil, errcode.InvalidPin
	}
	if err := out.ConfigureOutput(false); err != nil {
		return nil, err
	}
	zc, ok := pins.ByNumber(int(cfg.ZeroCrossPin))
	if !ok {
		return nil, errcode.InvalidPin
	}
	if err := zc.ConfigureInput(hw.PullDown); err != nil {
		return nil, err
	}

	c := &Controller{clk: clk, sched: sched, out: out, shift: cfg.ShiftUs}
	if err := d.Attach(cfg.ZeroCrossPin, cfg.Event, func(uint8, hw.Events) {
		c.onZeroCross()
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// onZeroCross runs in interrupt context on each detected crossing.
// Crossings closer than 3/4 period to the last accepted one are noise
// from the detector and are dropped.
func (c *Controller) onZeroCross() {
	now := c.clk.NowUs()
	if c.zcTimeUs.Load()+threeQuarterUs >= now {
		return
	}
	c.zcTimeUs.Store(now)
	duty := c.duty.Load()
	if duty == 0 {
		return
	}
	// Off first, then on: the off alarm must exist before the output can
	// be raised.
	c.sched.AlarmInUs(c.shift+threeQuarterUs, func() int64 {
		c.out.Set(false)
		return 0
	})
	c.sched.AlarmInUs(c.shift+int64(timeoutsUs[duty]), func() int64 {
		c.out.Set(true)
		return 0
	})
}

// SetDuty sets the duty index, clipped to [0, MaxDuty], and returns the
// applied value. Duty 0 leaves the output low.
func (c *Controller) SetDuty(duty int) int {
	if duty < 0 {
		duty = 0
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	c.duty.Store(uint32(duty))
	return duty
}

// Duty returns the current duty index.
func (c *Controller) Duty() int { return int(c.duty.Load()) }

// IsACHot reports whether a zero-cross was seen within the last mains
// period (plus a small margin).
func (c *Controller) IsACHot() bool {
	return c.zcTimeUs.Load()+periodUs+acHotMarginUs > c.clk.NowUs()
}

// SinceZeroCrossUs returns the time since the last accepted zero-cross.
func (c *Controller) SinceZeroCrossUs() int64 {
	return c.clk.NowUs() - c.zcTimeUs.Load()
}

// Package slowpwm pulse-width modulates an SSR at a period around one
// second. Zero-cross SSRs cannot follow hardware PWM frequencies, so the
// duty is quantized into N increments and realized with alarms: raise the
// output at each period start, lower it duty/N of the way through.
package slowpwm

import (
	"sync/atomic"

	"brewcode-go/errcode"
	"brewcode-go/hw"
)

// Config describes one slow PWM channel.
type Config struct {
	Pin        uint8
	PeriodMs   int64
	Increments int
}

// PWM drives one output pin. Duty changes take effect no later than the
// next period boundary.
type PWM struct {
	sched      hw.AlarmScheduler
	out        hw.GPIOPin
	periodMs   int64
	increments int
	duty       atomic.Uint32
}

// New configures the output pin and starts the period alarm.
func New(pins hw.PinFactory, sched hw.AlarmScheduler, cfg Config) (*PWM, error) {
	if cfg.PeriodMs <= 0 || cfg.Increments < 2 {
		return nil, errcode.InvalidParams
	}
	out, ok := pins.ByNumber(int(cfg.Pin))
	if !ok {
		return nil, errcode.InvalidPin
	}
	if err := out.ConfigureOutput(false); err != nil {
		return nil, err
	}
	p := &PWM{
		sched:      sched,
		out:        out,
		periodMs:   cfg.PeriodMs,
		increments: cfg.Increments,
	}
	sched.AlarmInUs(0, p.startPeriod)
	return p, nil
}

// startPeriod runs at every period boundary in alarm context.
func (p *PWM) startPeriod() int64 {
	duty := int(p.duty.Load())
	if duty < p.increments-1 {
		// At full duty the output stays high for the whole period.
		offMs := (p.periodMs / int64(p.increments)) * int64(duty)
		p.sched.AlarmInUs(offMs*1000, func() int64 {
			p.out.Set(false)
			return 0
		})
	}
	if duty > 0 {
		p.out.Set(true)
	}
	return p.periodMs * 1000
}

// SetDuty sets the duty in increments, clipped to [0, Increments-1], and
// returns the applied value.
func (p *PWM) SetDuty(duty int) int {
	if duty < 0 {
		duty = 0
	}
	if duty > p.increments-1 {
		duty = p.increments - 1
	}
	p.duty.Store(uint32(duty))
	return duty
}

// SetFloatDuty maps u in [0, 1] onto the increment range.
func (p *PWM) SetFloatDuty(u float32) int {
	if u < 0 {
		u = 0
	} else if u > 1 {
		u = 1
	}
	return p.SetDuty(int(u * float32(p.increments-1)))
}

// Duty returns the current duty in increments.
func (p *PWM) Duty() int { return int(p.duty.Load()) }

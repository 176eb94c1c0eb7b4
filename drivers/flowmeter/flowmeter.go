// Package flowmeter counts pulses from a paddle-wheel flow sensor and
// differentiates them into a rate. The interrupt handler only increments
// the pulse counter; the datapoint feed happens on the reader's side of
// the loop, so the derivative ring is touched from one context only.
package flowmeter

import (
	"sync/atomic"

	"brewcode-go/control"
	"brewcode-go/errcode"
	"brewcode-go/hw"
)

// Config describes one flow meter.
type Config struct {
	Pin uint8
	// ConversionMl is the volume per pulse in millilitres.
	ConversionMl float32
	// FilterSpanMs and SampleRateMs shape the rate derivative.
	FilterSpanMs int32
	SampleRateMs int32
}

// Meter is one pulse-counting flow sensor.
type Meter struct {
	conversionMl float32
	pulses       atomic.Uint32
	rate         *control.DiscreteDerivative
}

// New configures the pin and hooks the pulse counter into the dispatcher
// on the falling edge.
func New(pins hw.PinFactory, d *hw.Dispatcher, clk hw.Clock, cfg Config) (*Meter, error) {
	p, ok := pins.ByNumber(int(cfg.Pin))
	if !ok {
		return nil, errcode.InvalidPin
	}
	if err := p.ConfigureInput(hw.PullDown); err != nil {
		return nil, err
	}
	m := &Meter{
		conversionMl: cfg.ConversionMl,
		rate:         control.NewDerivative(clk, cfg.FilterSpanMs, cfg.SampleRateMs),
	}
	if err := d.Attach(cfg.Pin, hw.EventFall, func(uint8, hw.Events) {
		m.pulses.Add(1)
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// VolumeMl returns the total volume since the last zero.
func (m *Meter) VolumeMl() float32 {
	return float32(m.pulses.Load()) * m.conversionMl
}

// RateMlPerS returns the current flow rate. Reading also feeds the
// derivative, so the rate decays to zero when pulses stop.
func (m *Meter) RateMlPerS() float32 {
	m.rate.AddValue(float32(m.pulses.Load()))
	return m.rate.Read() * m.conversionMl
}

// Zero clears the pulse count and the rate window.
func (m *Meter) Zero() {
	m.pulses.Store(0)
	m.rate.Reset()
}

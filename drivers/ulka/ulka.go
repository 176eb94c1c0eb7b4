// Package ulka drives an Ulka-style vibratory pump through an AC phase
// controller. Percent power maps onto the controller's duty table through
// a pump characterization curve; with a flow meter attached the driver
// also estimates the outlet pressure from a linear pump model.
package ulka

import (
	"brewcode-go/drivers/flowmeter"
	"brewcode-go/hw"
	"brewcode-go/phase"
)

// powerToDuty maps percent power to a phase duty index. Entries rise from
// 60 at 1% to 127 at 100%; 0% is fully off. Below duty 60 the pump stalls,
// so the usable range starts there.
var powerToDuty = [101]uint8{
	0, 60, 61, 61, 62, 63, 63, 64, 65, 65, 66, 67, 67, 68, 69, 69, 70,
	71, 72, 72, 73, 74, 74, 75, 76, 76, 77, 78, 78, 79, 80, 80, 81, 82,
	82, 83, 84, 84, 85, 86, 86, 87, 88, 88, 89, 90, 90, 91, 92, 92, 93,
	94, 95, 95, 96, 97, 97, 98, 99, 99, 100, 101, 101, 102, 103, 103, 104, 105,
	105, 106, 107, 107, 108, 109, 109, 110, 111, 111, 112, 113, 113, 114, 115, 115, 116,
	117, 118, 118, 119, 120, 120, 121, 122, 122, 123, 124, 124, 125, 126, 126, 127,
}

// PressureModel is a linear pump model: bar at the outlet as a function of
// percent power and flow in ml/s. Calibrated per pump; replaceable
// wholesale.
type PressureModel struct {
	PowerCoef float32 // bar per percent power
	FlowCoef  float32 // bar per ml/s (negative: flow sheds pressure)
	Offset    float32 // bar at zero power, zero flow
}

// DefaultModel is the bench calibration of the stock Ulka EX5.
var DefaultModel = PressureModel{PowerCoef: 0.2, FlowCoef: -1.4757, Offset: -9.2}

// PressureBar evaluates the model.
func (m PressureModel) PressureBar(powerPercent uint8, flowMlS float32) float32 {
	return m.PowerCoef*float32(powerPercent) + m.FlowCoef*flowMlS + m.Offset
}

// PowerForPressure inverts the model at the given flow, clipped to
// [0, 100] percent.
func (m PressureModel) PowerForPressure(targetBar, flowMlS float32) uint8 {
	if m.PowerCoef == 0 {
		return 0
	}
	p := (targetBar - m.FlowCoef*flowMlS - m.Offset) / m.PowerCoef
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return uint8(p + 0.5)
}

// Config describes the pump's phase-control channel.
type Config struct {
	ZeroCrossPin uint8
	OutPin       uint8
	// ZeroCrossShiftUs compensates the detector's propagation delay.
	ZeroCrossShiftUs int64
	// ZeroCrossEvent is the edge marking a crossing.
	ZeroCrossEvent hw.Events
}

// Pump is one vibratory pump. It starts locked; power commands are
// ignored until Unlock.
type Pump struct {
	drv     *phase.Controller
	flow    *flowmeter.Meter // optional
	model   PressureModel
	locked  bool
	percent uint8
}

// New builds the pump's phase controller on the given pins.
func New(pins hw.PinFactory, d *hw.Dispatcher, clk hw.Clock, sched hw.AlarmScheduler, cfg Config) (*Pump, error) {
	drv, err := phase.New(pins, d, clk, sched, phase.Config{
		ZeroCrossPin: cfg.ZeroCrossPin,
		OutPin:       cfg.OutPin,
		ShiftUs:      cfg.ZeroCrossShiftUs,
		Event:        cfg.ZeroCrossEvent,
	})
	if err != nil {
		return nil, err
	}
	return &Pump{drv: drv, model: DefaultModel, locked: true}, nil
}

// AttachFlowMeter configures a flow meter for the pump, enabling flow and
// pressure reads.
func (p *Pump) AttachFlowMeter(pins hw.PinFactory, d *hw.Dispatcher, clk hw.Clock, cfg flowmeter.Config) error {
	fm, err := flowmeter.New(pins, d, clk, cfg)
	if err != nil {
		return err
	}
	p.flow = fm
	return nil
}

// SetPowerPercent applies percent power, clipped to [0, 100]. Ignored
// while locked.
func (p *Pump) SetPowerPercent(percent uint8) {
	if p.locked {
		return
	}
	if percent > 100 {
		percent = 100
	}
	p.percent = percent
	p.drv.SetDuty(int(powerToDuty[percent]))
}

// Off is SetPowerPercent(0).
func (p *Pump) Off() { p.SetPowerPercent(0) }

// Lock forces the pump off and holds it there until Unlock.
func (p *Pump) Lock() {
	p.locked = false
	p.SetPowerPercent(0)
	p.locked = true
}

// Unlock re-enables power commands.
func (p *Pump) Unlock() { p.locked = false }

// Locked reports the lock state.
func (p *Pump) Locked() bool { return p.locked }

// Power returns the current percent power.
func (p *Pump) Power() uint8 { return p.percent }

// FlowMlPerS returns the measured flow rate, 0 without a flow meter.
func (p *Pump) FlowMlPerS() float32 {
	if p.flow == nil {
		return 0
	}
	return p.flow.RateMlPerS()
}

// PressureBar estimates the outlet pressure from the model, floored at 0.
func (p *Pump) PressureBar() float32 {
	bar := p.model.PressureBar(p.percent, p.FlowMlPerS())
	if bar < 0 {
		return 0
	}
	return bar
}

// PowerForPressureBar returns the percent power the model predicts will
// reach targetBar at the current flow.
func (p *Pump) PowerForPressureBar(targetBar float32) uint8 {
	return p.model.PowerForPressure(targetBar, p.FlowMlPerS())
}

// SetPressureModel replaces the pump model.
func (p *Pump) SetPressureModel(m PressureModel) { p.model = m }

// IsACHot reports whether mains zero-crossings are arriving.
func (p *Pump) IsACHot() bool { return p.drv.IsACHot() }

// Duty exposes the phase duty index currently applied.
func (p *Pump) Duty() int { return p.drv.Duty() }

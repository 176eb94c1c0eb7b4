// Package autobrew runs a scripted brew routine: an ordered list of legs,
// each ramping a setpoint over a timeout window, optionally mapped to pump
// power, ended early by any of its armed triggers, and prefaced by setup
// hooks on its first tick.
package autobrew

import (
	"brewcode-go/errcode"
	"brewcode-go/hw"
	"brewcode-go/x/mathx"
)

// Registry and routine capacities.
const (
	MaxTriggers   = 8
	MaxMappings   = 8
	MaxSetupFuncs = 8
	MaxLegs       = 16
)

// MaxPumpPower is the largest percent power a leg may produce.
const MaxPumpPower = 100

// IdentityMapping marks a leg whose setpoint is used as percent power
// directly.
const IdentityMapping = -1

// Trigger reports whether its end condition holds for the configured
// per-leg value.
type Trigger func(value uint16) bool

// Mapping converts the current interpolated setpoint into percent power.
type Mapping func(setpoint uint16) uint8

// SetupFunc runs once on a leg's first tick, before its first mapping
// call.
type SetupFunc func()

type leg struct {
	mappingID   int8
	spStart     uint16
	spEnd       uint16
	timeoutDs   uint16
	setupFlags  uint8
	triggerVals [MaxTriggers]uint16
}

// Routine is an autobrew script plus the trigger/mapping/setup registries
// shared by its legs.
type Routine struct {
	clk      hw.Clock
	triggers [MaxTriggers]Trigger
	mappings [MaxMappings]Mapping
	setups   [MaxSetupFuncs]SetupFunc

	legs     []leg
	current  int
	legEndUs int64
	armed    bool
	power    uint8
	changed  bool
}

// New returns an empty routine.
func New(clk hw.Clock) *Routine {
	return &Routine{clk: clk, legs: make([]leg, 0, MaxLegs)}
}

// RegisterTrigger installs a trigger under id. An id may only be bound
// once.
func (r *Routine) RegisterTrigger(id int, fn Trigger) error {
	if id < 0 || id >= MaxTriggers || fn == nil || r.triggers[id] != nil {
		return errcode.InvalidParams
	}
	r.triggers[id] = fn
	return nil
}

// RegisterMapping installs a mapping under id.
func (r *Routine) RegisterMapping(id int, fn Mapping) error {
	if id < 0 || id >= MaxMappings || fn == nil || r.mappings[id] != nil {
		return errcode.InvalidParams
	}
	r.mappings[id] = fn
	return nil
}

// RegisterSetupFunc installs a setup hook under id.
func (r *Routine) RegisterSetupFunc(id int, fn SetupFunc) error {
	if id < 0 || id >= MaxSetupFuncs || fn == nil || r.setups[id] != nil {
		return errcode.InvalidParams
	}
	r.setups[id] = fn
	return nil
}

// ClearLegs removes every leg, keeping the registries.
func (r *Routine) ClearLegs() {
	r.legs = r.legs[:0]
}

// AddLeg appends a leg and returns its id. mappingID is IdentityMapping
// or the id of a registered mapping.
func (r *Routine) AddLeg(mappingID int8, spStart, spEnd, timeoutDs uint16) (int, error) {
	if len(r.legs) == MaxLegs {
		return 0, errcode.InvalidParams
	}
	if mappingID != IdentityMapping &&
		(mappingID < 0 || int(mappingID) >= MaxMappings || r.mappings[mappingID] == nil) {
		return 0, errcode.InvalidParams
	}
	r.legs = append(r.legs, leg{
		mappingID: mappingID,
		spStart:   spStart,
		spEnd:     spEnd,
		timeoutDs: timeoutDs,
	})
	return len(r.legs) - 1, nil
}

// SetLegTrigger arms the given trigger on a leg. A value of 0 disables it.
func (r *Routine) SetLegTrigger(legID, triggerID int, value uint16) error {
	if legID < 0 || legID >= len(r.legs) || triggerID < 0 || triggerID >= MaxTriggers {
		return errcode.InvalidParams
	}
	if value != 0 && r.triggers[triggerID] == nil {
		return errcode.InvalidParams
	}
	r.legs[legID].triggerVals[triggerID] = value
	return nil
}

// SetLegSetupFunc enables or disables a setup hook on a leg.
func (r *Routine) SetLegSetupFunc(legID, setupID int, enable bool) error {
	if legID < 0 || legID >= len(r.legs) || setupID < 0 || setupID >= MaxSetupFuncs {
		return errcode.InvalidParams
	}
	if enable && r.setups[setupID] == nil {
		return errcode.InvalidParams
	}
	if enable {
		r.legs[legID].setupFlags |= 1 << setupID
	} else {
		r.legs[legID].setupFlags &^= 1 << setupID
	}
	return nil
}

// currentSetpoint interpolates the active leg's setpoint over its timeout
// window.
func (r *Routine) currentSetpoint(cl *leg) uint16 {
	totalMs := int64(cl.timeoutDs) * 100
	remainMs := (r.legEndUs - r.clk.NowUs()) / 1000
	if remainMs < 0 {
		return cl.spEnd
	}
	return uint16(mathx.LerpI32(int32(cl.spStart), int32(cl.spEnd), totalMs-remainMs, totalMs))
}

// legTick advances the active leg once. It reports true when the routine
// moved on to the next leg and should be ticked again.
func (r *Routine) legTick() bool {
	if r.current >= len(r.legs) {
		r.power = 0
		return false
	}
	cl := &r.legs[r.current]

	if !r.armed {
		r.legEndUs = r.clk.NowUs() + int64(cl.timeoutDs)*100_000
		r.armed = true
		for i := 0; i < MaxSetupFuncs; i++ {
			if cl.setupFlags&(1<<i) != 0 && r.setups[i] != nil {
				r.setups[i]()
			}
		}
	}

	finished := r.clk.NowUs() >= r.legEndUs
	if !finished {
		for i, v := range cl.triggerVals {
			if v > 0 && r.triggers[i] != nil && r.triggers[i](v) {
				finished = true
				break
			}
		}
	}
	if finished {
		r.armed = false
		r.current++
		r.power = 0
		return true
	}

	sp := r.currentSetpoint(cl)
	var power uint16
	if cl.mappingID >= 0 {
		power = uint16(r.mappings[cl.mappingID](sp))
	} else {
		power = sp
	}
	if power > MaxPumpPower {
		power = MaxPumpPower
	}
	r.power = uint8(power)
	return false
}

// Tick advances the routine by one super-loop iteration and reports
// whether it has finished. Legs that complete are skipped through in the
// same call, so a chain of expired legs costs one tick.
func (r *Routine) Tick() bool {
	prev := r.power
	for r.legTick() {
	}
	r.changed = r.power != prev
	return r.Finished()
}

// PumpPower returns the percent power computed by the last Tick.
func (r *Routine) PumpPower() uint8 { return r.power }

// PumpChanged reports whether the last Tick changed the power.
func (r *Routine) PumpChanged() bool { return r.changed }

// CurrentLeg returns the 0-based active leg index, or -1 when finished.
func (r *Routine) CurrentLeg() int {
	if r.Finished() {
		return -1
	}
	return r.current
}

// Finished reports whether every leg has completed.
func (r *Routine) Finished() bool { return r.current >= len(r.legs) }

// Reset returns to the first leg and clears all per-leg state.
func (r *Routine) Reset() {
	r.current = 0
	r.armed = false
	r.power = 0
	r.changed = false
}

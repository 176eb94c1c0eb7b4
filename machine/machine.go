// Package machine is the top-level orchestrator of the espresso machine.
// It owns every subsystem and runs the five-step tick (switches, settings,
// boiler, pump, LEDs), publishing a state snapshot after each pass.
package machine

import (
	"io"

	"tinygo.org/x/drivers"

	"brewcode-go/autobrew"
	"brewcode-go/config"
	"brewcode-go/control"
	"brewcode-go/drivers/flowmeter"
	"brewcode-go/drivers/lmt01"
	"brewcode-go/drivers/mb85fram"
	"brewcode-go/drivers/nau7802"
	"brewcode-go/drivers/ulka"
	"brewcode-go/hw"
	"brewcode-go/input"
	"brewcode-go/output"
	"brewcode-go/settings"
	"brewcode-go/slowpwm"
	"brewcode-go/types"
)

// Console is the settings UI port: bytes in, display out. ReadByte must
// not block; ok reports whether a byte was available.
type Console interface {
	io.Writer
	ReadByte() (b byte, ok bool)
}

// Deps are the platform resources the machine is assembled from.
type Deps struct {
	Clock   hw.Clock
	Sched   hw.AlarmScheduler
	Pins    hw.PinFactory
	Bus     drivers.I2C        // FRAM + scale bus
	Pulses  lmt01.PulseCounter // boiler thermometer pulse tally
	Console Console
}

// Autobrew registry ids.
const (
	triggerMass     = 0 // value in mg
	triggerFlow     = 1 // value in 0.01 ml/s
	triggerPressure = 2 // value in mbar

	mappingPressure = 0 // setpoint in 0.1 bar
	mappingFlow     = 1 // setpoint in 0.01 ml/s

	setupZeroScale   = 0
	setupFlowControl = 1
)

// Machine is the assembled controller.
type Machine struct {
	clk   hw.Clock
	sched hw.AlarmScheduler
	disp  *hw.Dispatcher
	ldg   *hw.Ledger

	store      *settings.Store
	trw        *control.RunawayWatcher
	leds       *output.Group
	solenoid   *output.Group
	pumpSwitch *input.Binary
	modeDial   *input.Binary
	heater     *slowpwm.PWM
	thermo     *lmt01.Thermo
	scale      *nau7802.Device
	pump       *ulka.Pump
	heaterPID  *control.PID
	flowPID    *control.PID
	routine    *autobrew.Routine
	console    Console

	acOnTimeUs int64
	state      types.MachineState
}

// New wires the whole machine. Any setup failure aborts startup.
func New(deps Deps) (*Machine, error) {
	m := &Machine{
		clk:     deps.Clock,
		sched:   deps.Sched,
		console: deps.Console,
	}
	m.disp = hw.NewDispatcher(deps.Pins)
	m.ldg = hw.NewLedger(deps.Clock)

	fram, err := mb85fram.New(deps.Bus, 0)
	if err != nil {
		return nil, err
	}
	m.store, err = settings.New(fram, deps.Sched, deps.Console)
	if err != nil {
		return nil, err
	}

	m.routine = autobrew.New(deps.Clock)

	// Flow-regulation PID: output is a power delta around the bias set at
	// leg entry.
	flowGains := control.Gains{
		P: config.FlowPIDGainP, I: config.FlowPIDGainI,
		D: config.FlowPIDGainD, F: config.FlowPIDGainF,
	}
	m.flowPID = control.NewPID(deps.Clock, flowGains,
		control.SensorFunc(m.readFlowUlPerS), nil, nil,
		-100, 100, config.FlowPIDTickMs, config.FlowPIDDerivSpanMs)

	m.heater, err = slowpwm.New(deps.Pins, deps.Sched, slowpwm.Config{
		Pin:        config.HeaterPWMPin,
		PeriodMs:   config.HeaterPWMPeriodMs,
		Increments: config.HeaterPWMIncrements,
	})
	if err != nil {
		return nil, err
	}

	boilerGains := control.Gains{
		P: config.BoilerPIDGainP, I: config.BoilerPIDGainI,
		D: config.BoilerPIDGainD, F: config.BoilerPIDGainF,
	}
	m.heaterPID = control.NewPID(deps.Clock, boilerGains,
		control.SensorFunc(m.readBoilerC), control.SensorFunc(m.readFlowUlPerS),
		control.PlantFunc(func(u float32) { m.heater.SetFloatDuty(u) }),
		0, 1, config.BoilerPIDTickMs, config.BoilerPIDDerivSpanMs)

	m.trw = control.NewRunawayWatcher(deps.Clock, control.RunawayConfig{
		MaxStepChange:  config.ThermalMaxStepChange16C,
		ConvergenceTol: config.ThermalConvergenceTol16C,
		DivergenceLim:  config.ThermalDivergenceLim16C,
		MinHeatStep:    config.ThermalMinHeatStep16C,
		MinCoolStep:    config.ThermalMinCoolStep16C,
		WindowMs:       config.ThermalWindowMs,
	})

	m.leds, err = output.New(deps.Pins, []uint8{config.LED0Pin, config.LED1Pin, config.LED2Pin})
	if err != nil {
		return nil, err
	}
	m.solenoid, err = output.New(deps.Pins, []uint8{config.SolenoidPin})
	if err != nil {
		return nil, err
	}

	m.pumpSwitch, err = input.New(deps.Pins, m.disp, m.ldg, input.Config{
		Pins:       []uint8{config.PumpSwitchPin},
		Pull:       hw.PullUp,
		DebounceUs: config.PumpSwitchDebounceUs,
	})
	if err != nil {
		return nil, err
	}
	m.modeDial, err = input.New(deps.Pins, m.disp, m.ldg, input.Config{
		Pins:       []uint8{config.DialAPin, config.DialBPin},
		Pull:       hw.PullUp,
		DebounceUs: config.ModeDialDebounceUs,
		Muxed:      true,
	})
	if err != nil {
		return nil, err
	}

	m.pump, err = ulka.New(deps.Pins, m.disp, deps.Clock, deps.Sched, ulka.Config{
		ZeroCrossPin:     config.ACZeroCrossPin,
		OutPin:           config.PumpOutPin,
		ZeroCrossShiftUs: config.ACZeroCrossShiftUs,
		ZeroCrossEvent:   hw.EventRise,
	})
	if err != nil {
		return nil, err
	}
	if err := m.pump.AttachFlowMeter(deps.Pins, m.disp, deps.Clock, flowmeter.Config{
		Pin:          config.FlowRatePin,
		ConversionMl: config.FlowConversionMl,
		FilterSpanMs: config.FlowFilterSpanMs,
		SampleRateMs: config.FlowSampleRateMs,
	}); err != nil {
		return nil, err
	}

	m.scale = nau7802.New(deps.Bus)
	scaleCfg := nau7802.DefaultConfig
	scaleCfg.ConversionMg = config.ScaleConversionMg
	if err := m.scale.Configure(scaleCfg); err != nil {
		return nil, err
	}

	m.thermo = lmt01.New(deps.Pulses, nil)

	// AC-hot detection reads zero-cross recency from the ledger.
	if err := m.ldg.Watch(m.disp, config.ACZeroCrossPin, hw.EventRise); err != nil {
		return nil, err
	}

	m.registerAutobrewFuncs()
	m.state.Pump.Locked = true
	return m, nil
}

// ---- sensor and plant hooks ----

func (m *Machine) readBoilerC() float32 { return m.thermo.ReadCelsius() }

func (m *Machine) readFlowUlPerS() float32 { return 1000 * m.pump.FlowMlPerS() }

func (m *Machine) readMassMg() int32 {
	mg, _ := m.scale.ReadMg()
	return mg
}

// registerAutobrewFuncs installs the shared trigger/mapping/setup
// registries the scripted legs refer to.
func (m *Machine) registerAutobrewFuncs() {
	_ = m.routine.RegisterTrigger(triggerMass, func(mg uint16) bool {
		return m.scale.AtValMg(int32(mg))
	})
	_ = m.routine.RegisterTrigger(triggerFlow, func(centiMlS uint16) bool {
		return 100*m.pump.FlowMlPerS() >= float32(centiMlS)
	})
	_ = m.routine.RegisterTrigger(triggerPressure, func(mbar uint16) bool {
		return m.pump.PressureBar() > float32(mbar)/1000
	})
	_ = m.routine.RegisterMapping(mappingPressure, func(deciBar uint16) uint8 {
		return m.pump.PowerForPressureBar(float32(deciBar) / 10)
	})
	_ = m.routine.RegisterMapping(mappingFlow, func(centiMlS uint16) uint8 {
		m.flowPID.SetSetpoint(10 * float32(centiMlS))
		u := m.flowPID.Tick(nil)
		if u < 0 {
			return 0
		}
		if u > 100 {
			return 100
		}
		return uint8(u)
	})
	_ = m.routine.RegisterSetupFunc(setupZeroScale, func() {
		_ = m.scale.Zero()
	})
	_ = m.routine.RegisterSetupFunc(setupFlowControl, func() {
		m.flowPID.Reset()
		m.flowPID.SetBias(float32(m.pump.Power()))
	})
}

// rebuildAutobrew reassembles the scripted routine from the current
// settings. Legs with a zero timeout are skipped; the first built leg
// zeroes the scale; every leg without its own mass trigger stops at the
// configured yield.
func (m *Machine) rebuildAutobrew() {
	m.routine.ClearLegs()
	m.routine.Reset()
	yieldMg := uint16(m.store.Get(settings.WeightYield) * 100)
	first := true
	for leg := 0; leg < settings.NumLegs; leg++ {
		timeoutDs := m.store.Get(settings.LegParam(leg, settings.LegTimeout))
		if timeoutDs <= 0 {
			continue
		}
		style := m.store.Get(settings.LegParam(leg, settings.LegRefStyle))
		start := uint16(m.store.Get(settings.LegParam(leg, settings.LegRefStart)))
		end := uint16(m.store.Get(settings.LegParam(leg, settings.LegRefEnd)))

		mapping := int8(autobrew.IdentityMapping)
		switch style {
		case settings.RefStyleFlow:
			mapping = mappingFlow
		case settings.RefStylePressure:
			mapping = mappingPressure
		}
		id, err := m.routine.AddLeg(mapping, start, end, uint16(timeoutDs))
		if err != nil {
			return
		}
		if first {
			_ = m.routine.SetLegSetupFunc(id, setupZeroScale, true)
			first = false
		}
		if style == settings.RefStyleFlow {
			_ = m.routine.SetLegSetupFunc(id, setupFlowControl, true)
		}

		if f := m.store.Get(settings.LegParam(leg, settings.LegTriggerFlow)); f > 0 {
			_ = m.routine.SetLegTrigger(id, triggerFlow, uint16(f))
		}
		if p := m.store.Get(settings.LegParam(leg, settings.LegTriggerPressure)); p > 0 {
			_ = m.routine.SetLegTrigger(id, triggerPressure, uint16(p*100))
		}
		massMg := uint16(m.store.Get(settings.LegParam(leg, settings.LegTriggerMass)) * 100)
		if massMg == 0 {
			massMg = yieldMg
		}
		if massMg > 0 {
			_ = m.routine.SetLegTrigger(id, triggerMass, massMg)
		}
	}
}

// ---- per-tick steps ----

func (m *Machine) isACOn() bool {
	return m.ldg.SinceUs(config.ACZeroCrossPin) <= 1_000_000/60+100
}

func (m *Machine) isACSettled() bool {
	return m.clk.NowUs()-m.acOnTimeUs > config.ACSettlingTimeMs*1000
}

// updateSwitches refreshes the debounced inputs and their change flags.
// AC off-to-on restamps the settling timer, rebuilds the autobrew routine
// from settings, and resets the boiler PID; a mode change re-tares the
// scale.
func (m *Machine) updateSwitches() {
	sw := &m.state.Switches

	ac := m.isACOn()
	if sw.AC != ac {
		if ac {
			sw.ACChange = 1
			m.acOnTimeUs = m.clk.NowUs()
			m.rebuildAutobrew()
			m.heaterPID.Reset()
		} else {
			sw.ACChange = -1
		}
		sw.AC = ac
	} else {
		sw.ACChange = 0
	}

	pump := m.pumpSwitch.Read() != 0
	if sw.Pump != pump {
		if pump {
			sw.PumpChange = 1
		} else {
			sw.PumpChange = -1
		}
		sw.Pump = pump
	} else {
		sw.PumpChange = 0
	}

	mode := types.Mode(m.modeDial.Read())
	if sw.ModeDial != mode {
		if sw.ModeDial > mode {
			sw.ModeChange = -1
		} else {
			sw.ModeChange = 1
		}
		sw.ModeDial = mode
		_ = m.scale.Zero()
	} else {
		sw.ModeChange = 0
	}
}

// updateSettings feeds the UI: console bytes always, plus the
// switch-derived commands (root on AC off-to-on, subfolder selection on
// a pump-switch edge while the AC is off).
func (m *Machine) updateSettings() {
	if m.console != nil {
		if b, ok := m.console.ReadByte(); ok {
			if cmd, err := settings.CommandForByte(b); err == nil {
				_ = m.store.Update(cmd)
			}
		}
	}

	sw := &m.state.Switches
	if sw.ACChange == 1 {
		_ = m.store.Update(settings.CmdRoot)
		return
	}
	if !sw.AC && sw.PumpChange != 0 {
		if d := int(sw.ModeDial); d >= 1 && d <= 3 {
			_ = m.store.Update(settings.CmdSubfolder1 + settings.Command(d-1))
		}
	}
}

// setpoint16 resolves the boiler setpoint in 1/16 degC for the current
// mode. Settings are in 0.1 degC; the 1.6 factor converts the units.
func (m *Machine) setpoint16() int16 {
	var deci int32
	switch m.state.Switches.ModeDial {
	case types.ModeSteam:
		deci = m.store.Get(settings.TempSteam)
	case types.ModeHot:
		deci = m.store.Get(settings.TempHot)
	default:
		deci = m.store.Get(settings.TempBrew)
	}
	return int16(deci * 16 / 10)
}

// updateBoiler samples the thermometer, resolves the setpoint, runs the
// thermal-runaway watcher, and ticks the PID. Any watcher error trips the
// emergency stop.
func (m *Machine) updateBoiler() {
	b := &m.state.Boiler
	b.Temperature = m.thermo.Read()

	if m.state.Switches.AC && m.isACSettled() {
		b.Setpoint = m.setpoint16()
	} else {
		b.Setpoint = 0
	}

	if m.trw.Tick(b.Setpoint, b.Temperature) < 0 {
		m.EmergencyStop()
		b.Setpoint = 0
	} else {
		m.heaterPID.SetSetpoint(float32(b.Setpoint) / 16)
		m.heaterPID.Tick(&b.PID)
	}
	b.Thermal = m.trw.State()
	b.PowerLevel = uint8(m.heater.Duty())
}

// updatePump drives the pump and solenoid from the switch state. The
// pump stays locked until the AC has settled, and re-locks when the mode
// changes under a running pump switch so a dial flip cannot leave power
// flowing.
func (m *Machine) updatePump() {
	sw := &m.state.Switches

	if !sw.AC || !m.isACSettled() || m.trw.Errored() ||
		(sw.Pump && (sw.ModeChange != 0 || m.pump.Locked())) {
		m.pump.Lock()
	} else {
		m.pump.Unlock()
	}

	switch {
	case !sw.Pump || m.pump.Locked() || sw.ModeDial == types.ModeSteam:
		m.routine.Reset()
		m.pump.Off()
		m.solenoid.Put(0, false)
		m.state.Pump.BrewLeg = 0

	case sw.ModeDial == types.ModeHot:
		m.pump.SetPowerPercent(uint8(m.store.Get(settings.PowerHot)))
		m.solenoid.Put(0, false)
		m.state.Pump.BrewLeg = 0

	case sw.ModeDial == types.ModeManual:
		m.pump.SetPowerPercent(uint8(m.store.Get(settings.PowerBrew)))
		m.solenoid.Put(0, true)
		m.state.Pump.BrewLeg = 0

	case sw.ModeDial == types.ModeAuto:
		if !m.routine.Tick() {
			m.solenoid.Put(0, true)
			if m.routine.PumpChanged() {
				m.pump.SetPowerPercent(m.routine.PumpPower())
			}
			m.state.Pump.BrewLeg = int8(1 + m.routine.CurrentLeg())
		} else {
			m.pump.Off()
			m.solenoid.Put(0, false)
			m.state.Pump.BrewLeg = 0
		}
	}

	m.state.Pump.Locked = m.pump.Locked()
	m.state.Pump.PowerPercent = m.pump.Power()
	m.state.Pump.FlowMlPerS = m.pump.FlowMlPerS()
	m.state.Pump.PressureBar = m.pump.PressureBar()
	m.state.Scale.MassMg = m.readMassMg()
}

// ledTogglePeriodMs paces the error blink.
const ledTogglePeriodMs = 512

// updateLEDs drives the three indicators. Powered machine: bit 2 on, bit
// 1 at temperature, bit 0 dose reached with the pump off. A thermal error
// blinks the bit encoding which error. Machine off: the settings UI mask.
func (m *Machine) updateLEDs() {
	if m.state.Switches.AC {
		var mask uint8
		if m.trw.Errored() {
			nowMs := m.clk.NowUs() / 1000
			if nowMs%ledTogglePeriodMs > ledTogglePeriodMs/2 {
				mask = 1 << uint8(3+int8(m.trw.State()))
			}
		} else {
			doseMg := m.store.Get(settings.WeightDose) * 100
			if m.state.Switches.AC {
				mask |= 1 << 2
			}
			if m.heaterPID.AtSetpoint(2.5) {
				mask |= 1 << 1
			}
			if !m.state.Switches.Pump && m.scale.AtValMg(doseMg) {
				mask |= 1 << 0
			}
		}
		m.leds.Mask(mask)
		m.state.UIMask = mask
	} else {
		mask := m.store.UIMask()
		m.leds.Mask(mask)
		m.state.UIMask = mask
	}
}

// Tick runs one super-loop iteration.
func (m *Machine) Tick() {
	m.updateSwitches()
	m.updateSettings()
	m.updateBoiler()
	m.updatePump()
	m.updateLEDs()
}

// State returns the read-only snapshot of the last tick.
func (m *Machine) State() *types.MachineState { return &m.state }

// EmergencyStop zeroes the boiler duty, forces the pump off, and closes
// the solenoid.
func (m *Machine) EmergencyStop() {
	m.heater.SetDuty(0)
	m.pump.Lock()
	m.solenoid.Mask(0)
}

// HeaterDuty exposes the boiler's applied slow-PWM duty.
func (m *Machine) HeaterDuty() int { return m.heater.Duty() }

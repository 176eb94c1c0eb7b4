package control

import "brewcode-go/hw"

// RunawayState classifies the boiler's thermal behaviour. Errors are
// negative so that a sign test catches all of them.
type RunawayState int8

const (
	StateErrorDiverged         RunawayState = -3
	StateErrorFailedToConverge RunawayState = -2
	StateErrorLargeTempJump    RunawayState = -1
	StateOff                   RunawayState = 0
	StateHeating               RunawayState = 1
	StateCooling               RunawayState = 2
	StateConverged             RunawayState = 3
)

func (s RunawayState) String() string {
	switch s {
	case StateErrorDiverged:
		return "error_diverged"
	case StateErrorFailedToConverge:
		return "error_failed_to_converge"
	case StateErrorLargeTempJump:
		return "error_large_temp_jump"
	case StateOff:
		return "off"
	case StateHeating:
		return "heating"
	case StateCooling:
		return "cooling"
	case StateConverged:
		return "converged"
	}
	return "unknown"
}

// RunawayConfig sets the watcher's sensitivity. Temperatures are in the
// boiler's internal 1/16 degC units.
type RunawayConfig struct {
	MaxStepChange  int16 // largest allowed change between consecutive ticks
	ConvergenceTol int16 // band around the setpoint that counts as converged
	DivergenceLim  int16 // band a converged boiler must stay within
	MinHeatStep    int16 // required rise per progress window while heating
	MinCoolStep    int16 // required drop per progress window while cooling
	WindowMs       int64 // progress window length
}

// RunawayWatcher is a state machine watching the boiler for sensor faults
// and runaway heating. Any error state is terminal until the setpoint
// returns to 0.
type RunawayWatcher struct {
	clk hw.Clock
	cfg RunawayConfig

	state       RunawayState
	setpoint    int16
	temp        int16
	target      int16
	windowEndUs int64
}

// NewRunawayWatcher returns a watcher in the off state.
func NewRunawayWatcher(clk hw.Clock, cfg RunawayConfig) *RunawayWatcher {
	return &RunawayWatcher{clk: clk, cfg: cfg}
}

// Tick advances the state machine with the current setpoint and
// temperature and returns the new state.
func (w *RunawayWatcher) Tick(setpoint, temp int16) RunawayState {
	switch {
	case setpoint == 0:
		w.state = StateOff

	case w.state >= 0:
		if w.setpoint == 0 {
			// Machine just switched on; seed the previous temp so the
			// first reading cannot look like a jump.
			w.temp = temp
		}
		if (w.state == StateHeating || w.state == StateCooling) && w.clk.NowUs() >= w.windowEndUs {
			w.state = StateErrorFailedToConverge
		} else if diff16(w.temp, temp) > w.cfg.MaxStepChange {
			w.state = StateErrorLargeTempJump
		} else if w.setpoint != setpoint ||
			(w.state == StateHeating && temp >= w.target) ||
			(w.state == StateCooling && temp <= w.target) {
			if w.setpoint != setpoint {
				if temp < setpoint {
					w.state = StateHeating
				} else {
					w.state = StateCooling
				}
			}
			if w.state == StateHeating {
				w.target = temp + w.cfg.MinHeatStep
			} else if w.state == StateCooling {
				w.target = temp - w.cfg.MinCoolStep
			}
			w.windowEndUs = w.clk.NowUs() + w.cfg.WindowMs*1000
		}
		if w.state == StateHeating && temp >= setpoint-w.cfg.ConvergenceTol {
			w.state = StateConverged
		} else if w.state == StateCooling && temp <= setpoint+w.cfg.ConvergenceTol {
			w.state = StateConverged
		} else if w.state == StateConverged {
			if temp < setpoint-w.cfg.DivergenceLim || temp > setpoint+w.cfg.DivergenceLim {
				w.state = StateErrorDiverged
			}
		}
	}

	w.setpoint = setpoint
	w.temp = temp
	return w.state
}

// State returns the latest classification.
func (w *RunawayWatcher) State() RunawayState { return w.state }

// Errored reports whether the watcher is in any error state.
func (w *RunawayWatcher) Errored() bool { return w.state < 0 }

func diff16(a, b int16) int16 {
	if a < b {
		return b - a
	}
	return a - b
}

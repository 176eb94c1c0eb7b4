package config

// Switch debouncing. The mode dial's wiper bounces far longer than the
// pump microswitch.
const (
	PumpSwitchDebounceUs = 10_000
	ModeDialDebounceUs   = 75_000
)

// ACSettlingTimeMs is how long after the AC switch is seen hot before the
// pump may run, letting switch-on transients die out.
const ACSettlingTimeMs = 1000

// ACZeroCrossShiftUs compensates the zero-cross detector's propagation
// delay.
const ACZeroCrossShiftUs = -280

// Boiler PID gains. Feedback in degC, output in [0, 1] heater duty.
const (
	BoilerPIDGainP = 0.05
	BoilerPIDGainI = 0.0015
	BoilerPIDGainD = 0.0005
	BoilerPIDGainF = 0.00005

	BoilerPIDTickMs      = 100
	BoilerPIDDerivSpanMs = 1000
)

// Flow-regulation PID gains. Feedback in ul/s, output is a pump power
// delta around the bias in [-100, 100].
const (
	FlowPIDGainP = 0.1
	FlowPIDGainI = 0.02
	FlowPIDGainD = 0
	FlowPIDGainF = 0

	FlowPIDTickMs      = 25
	FlowPIDDerivSpanMs = 100
)

// Boiler slow-PWM shape.
const (
	HeaterPWMPeriodMs   = 1260
	HeaterPWMIncrements = 64
)

// Thermal-runaway watcher thresholds, in 1/16 degC.
const (
	ThermalMaxStepChange16C  = 16
	ThermalConvergenceTol16C = 2
	ThermalDivergenceLim16C  = 10
	ThermalMinHeatStep16C    = 4
	ThermalMinCoolStep16C    = 2
	ThermalWindowMs          = 10_000
)

// Autobrew pressure targets, in millibar.
const (
	AutobrewPreinfusePressureMbar = 3000
	AutobrewBrewPressureMbar      = 9000
)

// Sensor conversions.
const (
	// ScaleConversionMg converts NAU7802 counts to milligrams.
	ScaleConversionMg = -0.152710615479
	// FlowConversionMl is the flow meter's volume per pulse.
	FlowConversionMl = 0.0005
	// FlowFilterSpanMs and FlowSampleRateMs shape the flow derivative.
	FlowFilterSpanMs = 250
	FlowSampleRateMs = 25
)

// SettingsFlashPeriodMs is the value flasher's blink period.
const SettingsFlashPeriodMs = 750

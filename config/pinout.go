// Package config carries the board pinout and the machine tuning
// constants. Values are fixed at compile time; per-shot parameters live in
// the FRAM-backed settings instead.
package config

// Main board pinout.
const (
	I2CSDAPin      = 2  // I2C data
	I2CSCLPin      = 3  // I2C clock
	SolenoidPin    = 5  // 3-way solenoid control
	LMT01DataPin   = 6  // LMT01 pulse data
	DialAPin       = 7  // front dial pin A
	DialBPin       = 8  // front dial pin B
	PumpSwitchPin  = 9  // pump switch
	PumpOutPin     = 10 // pump SSR control
	HeaterPWMPin   = 11 // boiler SSR control
	LED2Pin        = 12
	LED1Pin        = 13
	ACZeroCrossPin = 14 // zero-cross sensor
	LED0Pin        = 15
	FlowRatePin    = 18 // flow meter pulse data
)

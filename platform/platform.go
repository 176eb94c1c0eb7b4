// Package platform supplies the board resources the machine runs on. The
// RP2 build wires the real pins, I2C block, and console UART; the Linux
// build reaches the bench hardware through periph.io; every other host
// gets inert software resources for bring-up and tests.
package platform

import (
	"io"

	"tinygo.org/x/drivers"

	"brewcode-go/drivers/lmt01"
	"brewcode-go/hw"
)

// Console is the settings UI port.
type Console interface {
	io.Writer
	ReadByte() (b byte, ok bool)
}

// Platform bundles everything machine.New needs.
type Platform struct {
	Clock   hw.Clock
	Sched   hw.AlarmScheduler
	Pins    hw.PinFactory
	Bus     drivers.I2C
	Pulses  lmt01.PulseCounter
	Console Console
}

//go:build !linux && !rp2040 && !rp2350

package platform

import (
	"os"
	"sync"

	"brewcode-go/hw"
)

// New returns an inert software platform: soft pins, an I2C bus that
// answers nothing, a room-temperature thermometer, and stdout as the
// console. Enough to boot the firmware loop on a development host.
func New() (*Platform, error) {
	return &Platform{
		Clock:   hw.NewSystemClock(),
		Sched:   hw.NewTimerScheduler(),
		Pins:    &softPinFactory{pins: map[int]*softPin{}},
		Bus:     &inertI2C{},
		Pulses:  staticPulses{},
		Console: &stdoutConsole{},
	}, nil
}

// inertI2C acknowledges every transaction and reads back zeros.
type inertI2C struct{}

func (inertI2C) Tx(addr uint16, w, r []byte) error {
	for i := range r {
		r[i] = 0
	}
	return nil
}

type staticPulses struct{}

func (staticPulses) Count() int { return 1200 } // ~25 degC

type softPinFactory struct {
	mu   sync.Mutex
	pins map[int]*softPin
}

func (f *softPinFactory) ByNumber(n int) (hw.IRQPin, bool) {
	if n < 0 || n >= hw.NumPins {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &softPin{n: n}
		f.pins[n] = p
	}
	return p, true
}

type softPin struct {
	n     int
	level bool
}

func (p *softPin) ConfigureInput(hw.Pull) error { return nil }
func (p *softPin) ConfigureOutput(initial bool) error {
	p.level = initial
	return nil
}
func (p *softPin) Set(level bool)                            { p.level = level }
func (p *softPin) Get() bool                                 { return p.level }
func (p *softPin) Number() int                               { return p.n }
func (p *softPin) SetIRQ(hw.Events, func(hw.Events)) error   { return nil }
func (p *softPin) ClearIRQ() error                           { return nil }

type stdoutConsole struct{}

func (stdoutConsole) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutConsole) ReadByte() (byte, bool)      { return 0, false }

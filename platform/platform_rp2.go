//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"brewcode-go/config"
	"brewcode-go/errcode"
	"brewcode-go/hw"
)

// New configures the Pico's pins, the I2C1 block carrying the FRAM and
// scale, the console UART, and the thermometer pulse counter.
func New() (*Platform, error) {
	bus := machine.I2C1
	if err := bus.Configure(machine.I2CConfig{
		Frequency: 100 * machine.KHz,
		SDA:       machine.Pin(config.I2CSDAPin),
		SCL:       machine.Pin(config.I2CSCLPin),
	}); err != nil {
		return nil, err
	}

	clk := hw.NewSystemClock()
	sched := hw.NewTimerScheduler()
	pins := rp2PinFactory{}

	pulses, err := newPulseCounter(pins, sched, config.LMT01DataPin)
	if err != nil {
		return nil, err
	}

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{BaudRate: 115200})

	return &Platform{
		Clock:   clk,
		Sched:   sched,
		Pins:    pins,
		Bus:     bus,
		Pulses:  pulses,
		Console: &rp2Console{u: u},
	}, nil
}

// ---- GPIO ----

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (hw.IRQPin, bool) {
	// GP0..GP28 are the Pico's user GPIOs.
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull hw.Pull) error {
	var mode machine.PinMode
	switch pull {
	case hw.PullUp:
		mode = machine.PinInputPullup
	case hw.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(events hw.Events, handler func(hw.Events)) error {
	var change machine.PinChange
	if events&hw.EventRise != 0 {
		change |= machine.PinRising
	}
	if events&hw.EventFall != 0 {
		change |= machine.PinFalling
	}
	return r.p.SetInterrupt(change, func(p machine.Pin) {
		// The RP2 port does not report which edge fired; recover it from
		// the current level.
		if p.Get() {
			handler(hw.EventRise)
		} else {
			handler(hw.EventFall)
		}
	})
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

// ---- console ----

type rp2Console struct{ u *uartx.UART }

func (c *rp2Console) Write(p []byte) (int, error) { return c.u.Write(p) }

func (c *rp2Console) ReadByte() (byte, bool) {
	if c.u.Buffered() == 0 {
		return 0, false
	}
	var b [1]byte
	n, err := c.u.Read(b[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return b[0], true
}

// ---- LMT01 pulse counter ----

// lmt01WindowMs spans one LMT01 conversion gap, so each window holds one
// full pulse train.
const lmt01WindowMs = 104

type pulseCounter struct {
	running atomic.Uint32
	latched atomic.Uint32
}

func newPulseCounter(pins hw.PinFactory, sched hw.AlarmScheduler, pin int) (*pulseCounter, error) {
	p, ok := pins.ByNumber(pin)
	if !ok {
		return nil, errcode.InvalidPin
	}
	if err := p.ConfigureInput(hw.PullDown); err != nil {
		return nil, err
	}
	pc := &pulseCounter{}
	if err := p.SetIRQ(hw.EventRise, func(hw.Events) {
		pc.running.Add(1)
	}); err != nil {
		return nil, err
	}
	sched.AlarmInUs(lmt01WindowMs*1000, func() int64 {
		pc.latched.Store(pc.running.Swap(0))
		return lmt01WindowMs * 1000
	})
	return pc, nil
}

func (pc *pulseCounter) Count() int { return int(pc.latched.Load()) }

//go:build linux && !rp2040 && !rp2350

package platform

import (
	"os"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"brewcode-go/errcode"
	"brewcode-go/hw"
	"brewcode-go/x/strconvx"
)

// New opens the bench rig through periph.io: the first I2C bus for the
// FRAM and scale, memory-mapped GPIO for everything else, and stdin/
// stdout as the console. Used for driver bring-up on a Pi wired to the
// main board.
func New() (*Platform, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, err
	}

	return &Platform{
		Clock:   hw.NewSystemClock(),
		Sched:   hw.NewTimerScheduler(),
		Pins:    &periphPinFactory{pins: map[int]*periphPin{}},
		Bus:     &periphI2C{bus: bus},
		Pulses:  staticPulses{},
		Console: &stdioConsole{},
	}, nil
}

// ---- I2C ----

// periphI2C adapts a periph bus to the tinygo drivers.I2C shape.
type periphI2C struct {
	mu  sync.Mutex
	bus i2c.Bus
}

func (b *periphI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(addr, w, r)
}

// ---- GPIO ----

type periphPinFactory struct {
	mu   sync.Mutex
	pins map[int]*periphPin
}

func (f *periphPinFactory) ByNumber(n int) (hw.IRQPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n]; ok {
		return p, true
	}
	io := gpioreg.ByName("GPIO" + strconvx.Itoa(n))
	if io == nil {
		return nil, false
	}
	p := &periphPin{io: io, n: n}
	f.pins[n] = p
	return p, true
}

type periphPin struct {
	io   gpio.PinIO
	n    int
	stop chan struct{}
}

func (p *periphPin) ConfigureInput(pull hw.Pull) error {
	var pp gpio.Pull
	switch pull {
	case hw.PullUp:
		pp = gpio.PullUp
	case hw.PullDown:
		pp = gpio.PullDown
	default:
		pp = gpio.Float
	}
	return p.io.In(pp, gpio.NoEdge)
}

func (p *periphPin) ConfigureOutput(initial bool) error {
	return p.io.Out(gpio.Level(initial))
}

func (p *periphPin) Set(level bool) { _ = p.io.Out(gpio.Level(level)) }
func (p *periphPin) Get() bool      { return bool(p.io.Read()) }
func (p *periphPin) Number() int    { return p.n }

// SetIRQ polls edges on a goroutine; periph exposes edge waits, not
// callbacks.
func (p *periphPin) SetIRQ(events hw.Events, handler func(hw.Events)) error {
	if events == 0 || handler == nil {
		return errcode.InvalidParams
	}
	var edge gpio.Edge
	switch events {
	case hw.EventRise:
		edge = gpio.RisingEdge
	case hw.EventFall:
		edge = gpio.FallingEdge
	default:
		edge = gpio.BothEdges
	}
	if err := p.io.In(gpio.PullNoChange, edge); err != nil {
		return err
	}
	p.stop = make(chan struct{})
	stop := p.stop
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if !p.io.WaitForEdge(-1) {
				continue
			}
			if p.io.Read() {
				if events&hw.EventRise != 0 {
					handler(hw.EventRise)
				}
			} else if events&hw.EventFall != 0 {
				handler(hw.EventFall)
			}
		}
	}()
	return nil
}

func (p *periphPin) ClearIRQ() error {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return p.io.In(gpio.PullNoChange, gpio.NoEdge)
}

// ---- thermometer ----

// staticPulses stands in for the LMT01 counter on rigs without the
// thermometer wired; it reads as 25 degC.
type staticPulses struct{}

func (staticPulses) Count() int { return 1200 }

// ---- console ----

type stdioConsole struct {
	once sync.Once
	ch   chan byte
}

func (c *stdioConsole) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (c *stdioConsole) ReadByte() (byte, bool) {
	c.once.Do(func() {
		c.ch = make(chan byte, 16)
		go func() {
			var b [1]byte
			for {
				n, err := os.Stdin.Read(b[:])
				if err != nil {
					return
				}
				if n == 1 {
					c.ch <- b[0]
				}
			}
		}()
	})
	select {
	case b := <-c.ch:
		return b, true
	default:
		return 0, false
	}
}

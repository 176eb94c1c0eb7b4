// Package drivertest provides in-memory I2C devices for driver and
// machine tests: an FRAM that stores bytes, a NAU7802 that answers the
// bring-up sequence and serves a settable conversion, and a bus that
// routes transactions by address.
package drivertest

import (
	"errors"
	"sync"
)

var ErrNoDevice = errors.New("no device at address")

// Bus routes Tx calls to fake devices by 7-bit address.
type Bus struct {
	mu      sync.Mutex
	devices map[uint16]func(w, r []byte) error
}

func NewBus() *Bus {
	return &Bus{devices: make(map[uint16]func(w, r []byte) error)}
}

// Add registers a device handler at addr.
func (b *Bus) Add(addr uint16, tx func(w, r []byte) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[addr] = tx
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	dev := b.devices[addr]
	b.mu.Unlock()
	if dev == nil {
		return ErrNoDevice
	}
	return dev(w, r)
}

// FRAM is a byte store addressed with 16-bit big-endian register
// addresses, mirroring the MB85 wire format.
type FRAM struct {
	mu  sync.Mutex
	Mem [1 << 16]byte
}

func NewFRAM() *FRAM { return &FRAM{} }

// Install puts the FRAM on the bus at the MB85 device address.
func (f *FRAM) Install(b *Bus, addrPins uint8) {
	b.Add(uint16(0x50|addrPins), f.Tx)
}

func (f *FRAM) Tx(w, r []byte) error {
	if len(w) < 2 {
		return errors.New("fram: short address")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := int(w[0])<<8 | int(w[1])
	for i, v := range w[2:] {
		f.Mem[(addr+i)&0xFFFF] = v
	}
	if len(w) == 2 {
		for i := range r {
			r[i] = f.Mem[(addr+i)&0xFFFF]
		}
	}
	return nil
}

// NAU7802 answers the scale driver's register traffic. The 24-bit
// conversion value is settable; power-up and calibration complete
// instantly.
type NAU7802 struct {
	mu   sync.Mutex
	regs [0x20]byte
	raw  int32
}

func NewNAU7802() *NAU7802 { return &NAU7802{} }

// Install puts the device on the bus at the NAU7802 address.
func (n *NAU7802) Install(b *Bus) { b.Add(0x2A, n.Tx) }

// SetRaw sets the conversion result served from the ADCO registers.
func (n *NAU7802) SetRaw(v int32) {
	n.mu.Lock()
	n.raw = v
	n.refreshADCO()
	n.mu.Unlock()
}

// SetRawForMg arranges the conversion so the driver reads approximately
// mg with the given conversion factor and origin raw value.
func SetRawForMg(mg int32, conversionMg float32, origin int32) int32 {
	return origin + int32(float32(mg)/conversionMg)
}

func (n *NAU7802) refreshADCO() {
	u := uint32(n.raw) & 0xFFFFFF
	n.regs[0x12] = byte(u >> 16)
	n.regs[0x13] = byte(u >> 8)
	n.regs[0x14] = byte(u)
}

func (n *NAU7802) Tx(w, r []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch len(w) {
	case 1: // register read, auto-increment
		reg := int(w[0])
		for i := range r {
			if reg+i < len(n.regs) {
				r[i] = n.regs[reg+i]
			}
		}
		return nil
	case 2: // register write
		reg, val := w[0], w[1]
		switch reg {
		case 0x00: // PU_CTRL
			if val&0x01 != 0 { // reset
				for i := range n.regs {
					n.regs[i] = 0
				}
				n.refreshADCO()
				return nil
			}
			if val&0x06 != 0 { // any power-up: ready immediately
				val |= 0x08
			}
			n.regs[reg] = val
		case 0x02: // CTRL2: calibration completes immediately
			n.regs[reg] = val &^ 0x04
		default:
			if int(reg) < len(n.regs) {
				n.regs[reg] = val
			}
		}
		return nil
	}
	return errors.New("nau7802: unexpected transaction")
}

// PulseCounter is a settable lmt01.PulseCounter.
type PulseCounter struct {
	mu sync.Mutex
	c  int
}

func NewPulseCounter(count int) *PulseCounter { return &PulseCounter{c: count} }

func (p *PulseCounter) Set(count int) {
	p.mu.Lock()
	p.c = count
	p.mu.Unlock()
}

// SetCelsius16 sets the count so the nominal conversion reads t
// sixteenths.
func (p *PulseCounter) SetCelsius16(t int) { p.Set(t + 800) }

func (p *PulseCounter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c
}

// Console is a scripted settings port: queued input bytes, captured
// output.
type Console struct {
	mu  sync.Mutex
	in  []byte
	out []byte
}

func NewConsole() *Console { return &Console{} }

// Feed queues input bytes for ReadByte.
func (c *Console) Feed(bs ...byte) {
	c.mu.Lock()
	c.in = append(c.in, bs...)
	c.mu.Unlock()
}

func (c *Console) ReadByte() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.in) == 0 {
		return 0, false
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, true
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.out = append(c.out, p...)
	c.mu.Unlock()
	return len(p), nil
}

// Output returns everything written so far.
func (c *Console) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.out)
}

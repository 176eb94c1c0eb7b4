// Package mb85fram drives an MB85RC-family FRAM over I2C: byte-addressable
// storage with 16-bit register addresses. On top of the raw reads and
// writes it keeps "linked variables": RAM buffers mirrored to a remote
// region, initialized in either direction at link time. The settings
// store builds its profile shuffle on these links.
package mb85fram

import (
	"tinygo.org/x/drivers"

	"brewcode-go/errcode"
)

// deviceCode is the MB85 I2C device type; the three address pins fill the
// low bits.
const deviceCode = 0x50

// InitDir selects which side seeds a new link.
type InitDir uint8

const (
	// InitFromFRAM loads the remote contents into the buffer at link time.
	InitFromFRAM InitDir = iota
	// InitFromVar writes the buffer to the remote region at link time.
	InitFromVar
)

// Device is one FRAM chip.
type Device struct {
	bus  drivers.I2C
	addr uint16
	vars []*Var
	wbuf []byte
}

// Var is a RAM buffer linked to a remote region.
type Var struct {
	dev    *Device
	addr   uint16
	buf    []byte
	linked bool
}

// New probes the chip at the given address-pin setting.
func New(bus drivers.I2C, addrPins uint8) (*Device, error) {
	if addrPins > 7 {
		return nil, errcode.InvalidAddress
	}
	d := &Device{bus: bus, addr: uint16(deviceCode | addrPins)}
	var probe [1]byte
	if err := d.Read(0, probe[:]); err != nil {
		return nil, errcode.FRAMNotPresent
	}
	return d, nil
}

// Read fills dst from the remote address.
func (d *Device) Read(addr uint16, dst []byte) error {
	cmd := [2]byte{byte(addr >> 8), byte(addr)}
	return d.bus.Tx(d.addr, cmd[:], dst)
}

// Write stores src at the remote address.
func (d *Device) Write(addr uint16, src []byte) error {
	need := 2 + len(src)
	if cap(d.wbuf) < need {
		d.wbuf = make([]byte, 0, need)
	}
	d.wbuf = d.wbuf[:0]
	d.wbuf = append(d.wbuf, byte(addr>>8), byte(addr))
	d.wbuf = append(d.wbuf, src...)
	return d.bus.Tx(d.addr, d.wbuf, nil)
}

// Link mirrors buf to the remote region starting at addr. The link is
// seeded per dir before it is returned.
func (d *Device) Link(buf []byte, addr uint16, dir InitDir) (*Var, error) {
	if len(buf) == 0 {
		return nil, errcode.InvalidParams
	}
	v := &Var{dev: d, addr: addr, buf: buf, linked: true}
	d.vars = append(d.vars, v)
	var err error
	if dir == InitFromFRAM {
		err = v.Load()
	} else {
		err = v.Save()
	}
	if err != nil {
		v.Unlink()
		return nil, err
	}
	return v, nil
}

// Save writes the buffer to its remote region.
func (v *Var) Save() error {
	if !v.linked {
		return errcode.NotLinked
	}
	return v.dev.Write(v.addr, v.buf)
}

// Load refreshes the buffer from its remote region.
func (v *Var) Load() error {
	if !v.linked {
		return errcode.NotLinked
	}
	return v.dev.Read(v.addr, v.buf)
}

// Unlink detaches the buffer. Further Save/Load calls fail.
func (v *Var) Unlink() {
	if !v.linked {
		return
	}
	v.linked = false
	for i, o := range v.dev.vars {
		if o == v {
			v.dev.vars = append(v.dev.vars[:i], v.dev.vars[i+1:]...)
			break
		}
	}
}

// MaxAddr probes the address space for its wrap point and returns the
// largest usable address, or 0 on error. FRAMs alias past the end, so a
// write at a candidate chip size that shows up at address 0 marks the
// size. Chips larger than the 16-bit address space report 0xFFFF.
func (d *Device) MaxAddr() uint16 {
	sizes := [...]uint32{1 << 9, 1 << 11, 1 << 13, 1 << 14, 1 << 15}
	var b0, buf, check [1]byte
	if d.Read(0, b0[:]) != nil {
		return 0
	}
	for _, size := range sizes {
		boundary := uint16(size)
		if d.Read(boundary, buf[:]) != nil {
			return 0
		}
		if buf[0] != b0[0] {
			// Distinct content past the candidate size: not aliased.
			continue
		}
		buf[0]++
		if d.Write(boundary, buf[:]) != nil {
			return 0
		}
		if d.Read(0, check[:]) != nil {
			return 0
		}
		buf[0]--
		if d.Write(boundary, buf[:]) != nil {
			return 0
		}
		if check[0] != b0[0] {
			return uint16(size - 1)
		}
	}
	return 0xFFFF
}

// SetAll fills the whole chip with value, in 256-byte strides.
func (d *Device) SetAll(value byte, capBytes uint32) error {
	const stride = 256
	var block [stride]byte
	for i := range block {
		block[i] = value
	}
	for addr := uint32(0); addr < capBytes; addr += stride {
		n := capBytes - addr
		if n > stride {
			n = stride
		}
		if err := d.Write(uint16(addr), block[:n]); err != nil {
			return err
		}
	}
	return nil
}

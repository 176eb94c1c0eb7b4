// Package nau7802 drives the NAU7802 24-bit bridge ADC used as the output
// scale, over I2C. Bring-up, conversion reads, tare, and milligram
// conversion live here; the full register map of the part is wider than
// the handful of control registers the scale needs.
package nau7802

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// DefaultAddress is the part's fixed 7-bit I2C address.
const DefaultAddress = 0x2A

var (
	ErrTx      = errors.New("i2c transaction failed")
	ErrTimeout = errors.New("nau7802 not ready")
)

// Register addresses.
const (
	regPUCtrl  = 0x00 // power-up control
	regCtrl1   = 0x01 // gain / LDO
	regCtrl2   = 0x02 // rate / calibration
	regI2CCtrl = 0x11
	regADCOB2  = 0x12 // conversion 23..16
	regADCCtrl = 0x15
	regPGA     = 0x1B
	regPwrCtrl = 0x1C
)

// PU_CTRL bits.
const (
	puRR    = 1 << 0 // register reset
	puPUD   = 1 << 1 // digital power up
	puPUA   = 1 << 2 // analog power up
	puPUR   = 1 << 3 // power-up ready
	puCS    = 1 << 4 // cycle start
	puCR    = 1 << 5 // cycle ready
	puAVDDS = 1 << 7 // AVDD from internal LDO
)

// CTRL2 bits.
const (
	ctrl2CALS   = 1 << 2 // start calibration
	ctrl2CALERR = 1 << 3
)

// Config selects the analog front-end setup and the mass conversion.
type Config struct {
	Address uint16
	// GainBits is the PGA gain field (0..7 for x1..x128).
	GainBits uint8
	// LDOBits selects the internal LDO voltage (CTRL1 VLDO field).
	LDOBits uint8
	// RateBits is the conversion-rate field (CTRL2 CRS).
	RateBits uint8
	// ConversionMg converts raw counts (origin-relative) to milligrams.
	ConversionMg float32
}

// DefaultConfig matches the scale bring-up used on the main board:
// x128 gain, 3.0 V LDO, 80 SPS.
var DefaultConfig = Config{
	Address:      DefaultAddress,
	GainBits:     0x7,
	LDOBits:      0x5,
	RateBits:     0x3,
	ConversionMg: -0.0152,
}

// Device is one NAU7802.
type Device struct {
	bus          drivers.I2C
	addr         uint16
	conversionMg float32
	origin       int32

	wbuf [2]byte
	rbuf [3]byte
}

// New returns an unconfigured device on the bus.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, addr: DefaultAddress}
}

func (d *Device) readReg(reg byte, n int) error {
	d.wbuf[0] = reg
	if err := d.bus.Tx(d.addr, d.wbuf[:1], d.rbuf[:n]); err != nil {
		return ErrTx
	}
	return nil
}

func (d *Device) writeReg(reg, val byte) error {
	d.wbuf[0] = reg
	d.wbuf[1] = val
	if err := d.bus.Tx(d.addr, d.wbuf[:2], nil); err != nil {
		return ErrTx
	}
	return nil
}

func (d *Device) setBits(reg, mask byte) error {
	if err := d.readReg(reg, 1); err != nil {
		return err
	}
	return d.writeReg(reg, d.rbuf[0]|mask)
}

func (d *Device) clearBits(reg, mask byte) error {
	if err := d.readReg(reg, 1); err != nil {
		return err
	}
	return d.writeReg(reg, d.rbuf[0]&^mask)
}

// Configure resets the part, powers it up, programs gain/LDO/rate, runs an
// internal calibration, and tares at the first conversion.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.addr = cfg.Address
	}
	d.conversionMg = cfg.ConversionMg

	// Register reset pulse.
	if err := d.writeReg(regPUCtrl, puRR); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := d.writeReg(regPUCtrl, 0); err != nil {
		return err
	}

	// Digital then analog power, AVDD from the internal LDO.
	if err := d.writeReg(regPUCtrl, puPUD|puPUA|puAVDDS); err != nil {
		return err
	}
	if err := d.waitReady(200 * time.Millisecond); err != nil {
		return err
	}

	if err := d.writeReg(regCtrl1, cfg.LDOBits<<3|cfg.GainBits); err != nil {
		return err
	}
	if err := d.writeReg(regCtrl2, cfg.RateBits<<4); err != nil {
		return err
	}

	if err := d.calibrate(); err != nil {
		return err
	}

	// Start continuous conversions and tare on the first one.
	if err := d.setBits(regPUCtrl, puCS); err != nil {
		return err
	}
	return d.Zero()
}

// waitReady polls the power-up-ready bit.
func (d *Device) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := d.readReg(regPUCtrl, 1); err != nil {
			return err
		}
		if d.rbuf[0]&puPUR != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// calibrate runs the internal offset calibration to completion.
func (d *Device) calibrate() error {
	if err := d.setBits(regCtrl2, ctrl2CALS); err != nil {
		return err
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if err := d.readReg(regCtrl2, 1); err != nil {
			return err
		}
		if d.rbuf[0]&ctrl2CALS == 0 {
			if d.rbuf[0]&ctrl2CALERR != 0 {
				return ErrTx
			}
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// ReadRaw returns the latest 24-bit conversion, sign-extended.
func (d *Device) ReadRaw() (int32, error) {
	if err := d.readReg(regADCOB2, 3); err != nil {
		return 0, err
	}
	v := int32(d.rbuf[0])<<16 | int32(d.rbuf[1])<<8 | int32(d.rbuf[2])
	// Sign-extend from 24 bits.
	v = v << 8 >> 8
	return v, nil
}

// ReadMg returns the tared mass in milligrams.
func (d *Device) ReadMg() (int32, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	return int32(d.conversionMg * float32(raw-d.origin)), nil
}

// Zero tares the scale at the current conversion.
func (d *Device) Zero() error {
	raw, err := d.ReadRaw()
	if err != nil {
		return err
	}
	d.origin = raw
	return nil
}

// AtValMg reports whether the tared mass is at or above mg.
func (d *Device) AtValMg(mg int32) bool {
	m, err := d.ReadMg()
	return err == nil && m >= mg
}

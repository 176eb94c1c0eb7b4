// Package lmt01 reads an LMT01 pulse-train thermometer. The part streams
// a burst of current pulses each conversion; a hardware counter (PIO on
// the target) tallies them per window and this driver converts the count
// to 1/16 degC. The sensor's fine piecewise-linear segments live with the
// platform; the nominal conversion here is 16 pulses per degree with a
// -50 degC offset.
package lmt01

// Valid pulse counts for the sensor's -50..150 degC range. Counts outside
// this window are conversion glitches (typically during startup) and are
// discarded.
const (
	minValidCount = 26
	maxValidCount = 3218
)

// PulseCounter reports the pulse tally of the most recent complete
// conversion window.
type PulseCounter interface {
	Count() int
}

// Convert turns a window pulse count into 1/16 degC.
type Convert func(count int) int16

// Nominal is the datasheet's linear conversion: T = count/16 - 50, i.e.
// sixteenths = count - 800.
func Nominal(count int) int16 { return int16(count - 800) }

// Thermo is one LMT01 sensor.
type Thermo struct {
	pc      PulseCounter
	convert Convert
	last    int16
	primed  bool
}

// New wraps a pulse counter. A nil convert uses the Nominal conversion.
func New(pc PulseCounter, convert Convert) *Thermo {
	if convert == nil {
		convert = Nominal
	}
	return &Thermo{pc: pc, convert: convert}
}

// Read returns the boiler temperature in 1/16 degC. Implausible counts
// are skipped and the last good reading is returned; before the first
// good reading it spins until one appears.
func (t *Thermo) Read() int16 {
	for {
		c := t.pc.Count()
		if c >= minValidCount && c <= maxValidCount {
			t.last = t.convert(c)
			t.primed = true
			return t.last
		}
		if t.primed {
			return t.last
		}
	}
}

// ReadCelsius returns the temperature in degrees.
func (t *Thermo) ReadCelsius() float32 { return float32(t.Read()) / 16 }

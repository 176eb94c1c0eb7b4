// Package input reads debounced switches. An input may span several pins:
// either a one-of-N selector (mode dial) reporting the first active pin,
// or a muxed set reporting a bitmask.
package input

import (
	"brewcode-go/errcode"
	"brewcode-go/hw"
)

// Config describes one binary input.
type Config struct {
	Pins       []uint8
	Pull       hw.Pull
	DebounceUs int64
	Invert     bool
	Muxed      bool
}

// Binary is a debounced multi-pin switch. While any of its pins is inside
// the debounce window the previously latched state is reported.
type Binary struct {
	pins       []hw.IRQPin
	nums       []uint8
	ledger     *hw.Ledger
	debounceUs int64
	pull       hw.Pull
	invert     bool
	muxed      bool
	latched    []bool
}

// New configures the pins as inputs and, when debouncing, watches both
// edges in the timestamp ledger.
func New(pins hw.PinFactory, d *hw.Dispatcher, l *hw.Ledger, cfg Config) (*Binary, error) {
	if len(cfg.Pins) == 0 {
		return nil, errcode.InvalidParams
	}
	b := &Binary{
		nums:       append([]uint8(nil), cfg.Pins...),
		ledger:     l,
		debounceUs: cfg.DebounceUs,
		pull:       cfg.Pull,
		invert:     cfg.Invert,
		muxed:      cfg.Muxed,
		latched:    make([]bool, len(cfg.Pins)),
	}
	for _, n := range cfg.Pins {
		p, ok := pins.ByNumber(int(n))
		if !ok {
			return nil, errcode.InvalidPin
		}
		if err := p.ConfigureInput(cfg.Pull); err != nil {
			return nil, err
		}
		if cfg.DebounceUs > 0 {
			if err := l.Watch(d, n, hw.EventRise|hw.EventFall); err != nil {
				return nil, err
			}
		}
		b.pins = append(b.pins, p)
	}
	return b, nil
}

// bouncing reports whether any pin saw an edge within the debounce window.
func (b *Binary) bouncing() bool {
	if b.debounceUs == 0 {
		return false
	}
	for _, n := range b.nums {
		if b.ledger.SinceUs(n) < b.debounceUs {
			return true
		}
	}
	return false
}

// latch refreshes the pin states unless the input is bouncing.
func (b *Binary) latch() {
	if b.bouncing() {
		return
	}
	for i, p := range b.pins {
		// A pulled-up pin is active low.
		v := p.Get()
		if b.pull == hw.PullUp {
			v = !v
		}
		if b.invert {
			v = !v
		}
		b.latched[i] = v
	}
}

// Read returns the stable state of the input. Muxed inputs return the
// bitmask of pin states (pin 0 in bit 0); otherwise the 1-based index of
// the first active pin, or 0 when none is active.
func (b *Binary) Read() int {
	b.latch()
	if b.muxed {
		mask := 0
		for i, on := range b.latched {
			if on {
				mask |= 1 << i
			}
		}
		return mask
	}
	for i, on := range b.latched {
		if on {
			return i + 1
		}
	}
	return 0
}

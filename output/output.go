// Package output groups digital output pins (the indicator LEDs, the
// three-way solenoid) behind index and mask writes.
package output

import (
	"brewcode-go/errcode"
	"brewcode-go/hw"
)

// Group drives a fixed set of output pins.
type Group struct {
	pins []hw.GPIOPin
}

// New configures the numbered pins as outputs, initially low.
func New(pins hw.PinFactory, nums []uint8) (*Group, error) {
	if len(nums) == 0 {
		return nil, errcode.InvalidParams
	}
	g := &Group{}
	for _, n := range nums {
		p, ok := pins.ByNumber(int(n))
		if !ok {
			return nil, errcode.InvalidPin
		}
		if err := p.ConfigureOutput(false); err != nil {
			return nil, err
		}
		g.pins = append(g.pins, p)
	}
	return g, nil
}

// Put sets the idx-th pin of the group.
func (g *Group) Put(idx int, level bool) {
	if idx < 0 || idx >= len(g.pins) {
		return
	}
	g.pins[idx].Set(level)
}

// Mask writes all pins from a bitmask, pin 0 in bit 0.
func (g *Group) Mask(m uint8) {
	for i, p := range g.pins {
		p.Set(m&(1<<i) != 0)
	}
}

// Get reports the idx-th pin's level.
func (g *Group) Get(idx int) bool {
	if idx < 0 || idx >= len(g.pins) {
		return false
	}
	return g.pins[idx].Get()
}

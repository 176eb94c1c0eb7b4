// Package flasher blinks a 3-digit value onto a 3-bit LED mask: one blink
// of bit 2 per hundred, bit 1 per ten, bit 0 per unit, with an all-off
// frame between blinks. The settings UI uses it to show the value being
// adjusted.
package flasher

import (
	"sync"

	"brewcode-go/hw"
)

// Flasher emits the blink sequence through a setter at a fixed period.
type Flasher struct {
	sched    hw.AlarmScheduler
	set      func(uint8)
	periodUs int64

	mu      sync.Mutex
	value   uint16
	cur     uint16
	mask    uint8
	alarm   hw.AlarmID
	running bool
}

// New creates a stopped flasher. set receives every frame, including the
// all-off ones.
func New(sched hw.AlarmScheduler, periodMs int64, set func(uint8)) *Flasher {
	f := &Flasher{sched: sched, set: set, periodUs: periodMs * 1000}
	set(0)
	return f
}

// Update replaces the value to flash and restarts the blink sequence.
func (f *Flasher) Update(value uint16) {
	f.mu.Lock()
	f.value = value
	f.cur = value
	f.mask = 0
	f.mu.Unlock()
	f.set(0)
}

// Start arms the blink alarm, restarting the sequence from the top.
func (f *Flasher) Start() {
	f.End()
	f.mu.Lock()
	f.cur = f.value
	f.mask = 0
	f.running = true
	f.alarm = f.sched.AlarmInUs(f.periodUs, f.step)
	f.mu.Unlock()
	f.set(0)
}

// End cancels the blink alarm. The mask is left as last written.
func (f *Flasher) End() {
	f.mu.Lock()
	if f.running {
		f.sched.Cancel(f.alarm)
		f.running = false
	}
	f.mu.Unlock()
}

// step advances the blink sequence one frame. Alarm context.
func (f *Flasher) step() int64 {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return 0
	}
	if f.mask != 0 {
		f.mask = 0
	} else {
		switch {
		case f.cur >= 100:
			f.mask = 0b100
			f.cur -= 100
		case f.cur >= 10:
			f.mask = 0b010
			f.cur -= 10
		case f.cur >= 1:
			f.mask = 0b001
			f.cur--
		default:
			f.cur = f.value
		}
	}
	mask := f.mask
	period := f.periodUs
	f.mu.Unlock()
	f.set(mask)
	return period
}

package hw

import (
	"sync/atomic"

	"brewcode-go/errcode"
)

// Ledger records the time of the last watched edge per pin. The write from
// interrupt context is a single atomic store; readers tolerate a value
// that was correct an instant before the read.
//
// A pin that has never fired reads as timestamp 0, so SinceUs reports the
// time since boot for it.
type Ledger struct {
	clk     Clock
	stamps  [NumPins]atomic.Int64
	watched [NumPins]Events
}

func NewLedger(clk Clock) *Ledger {
	return &Ledger{clk: clk}
}

// Watch hooks the ledger into the dispatcher for the given events on pin.
// Watching events that are already covered is a no-op.
func (l *Ledger) Watch(d *Dispatcher, pin uint8, events Events) error {
	if pin >= NumPins {
		return errcode.InvalidPin
	}
	if events&^(EventRise|EventFall) != 0 || events == 0 {
		return errcode.InvalidParams
	}
	if events&^l.watched[pin] == 0 {
		return nil
	}
	add := events &^ l.watched[pin]
	l.watched[pin] |= events
	return d.Attach(pin, add, func(p uint8, _ Events) {
		l.stamps[p].Store(l.clk.NowUs())
	})
}

// ReadUs returns the raw timestamp of the last edge on pin, 0 if none.
func (l *Ledger) ReadUs(pin uint8) int64 {
	if pin >= NumPins {
		return 0
	}
	return l.stamps[pin].Load()
}

// SinceUs returns the microseconds elapsed since the last edge on pin.
func (l *Ledger) SinceUs(pin uint8) int64 {
	if pin >= NumPins {
		return 0
	}
	return l.clk.NowUs() - l.stamps[pin].Load()
}

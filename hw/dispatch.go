package hw

import "brewcode-go/errcode"

// PinCallback receives the pin and the event set that fired. Callbacks run
// in interrupt context.
type PinCallback func(pin uint8, events Events)

type subscriber struct {
	events Events
	fn     PinCallback
}

// Dispatcher fans a pin's edge interrupts out to every subscriber whose
// event mask overlaps the fired event. Several subsystems can watch the
// same pin (the zero-cross pin feeds both the phase controller and the
// timestamp ledger).
//
// Attach is a setup-time operation; once the super-loop is running the
// subscriber lists are read-only and Dispatch touches them without
// locking.
type Dispatcher struct {
	pins   PinFactory
	subs   [NumPins][]subscriber
	hooked [NumPins]Events
}

func NewDispatcher(pins PinFactory) *Dispatcher {
	return &Dispatcher{pins: pins}
}

// Attach registers fn for the given events on pin, widening the physical
// IRQ mask as needed.
func (d *Dispatcher) Attach(pin uint8, events Events, fn PinCallback) error {
	if pin >= NumPins {
		return errcode.InvalidPin
	}
	if events == 0 || fn == nil {
		return errcode.InvalidParams
	}
	p, ok := d.pins.ByNumber(int(pin))
	if !ok {
		return errcode.InvalidPin
	}

	d.subs[pin] = append(d.subs[pin], subscriber{events: events, fn: fn})

	union := d.hooked[pin] | events
	if union != d.hooked[pin] {
		d.hooked[pin] = union
		n := pin
		if err := p.SetIRQ(union, func(ev Events) { d.Dispatch(n, ev) }); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch invokes every subscriber on pin whose mask overlaps events.
// Interrupt context.
func (d *Dispatcher) Dispatch(pin uint8, events Events) {
	if pin >= NumPins {
		return
	}
	for i := range d.subs[pin] {
		if d.subs[pin][i].events&events != 0 {
			d.subs[pin][i].fn(pin, events)
		}
	}
}

package hw_test

import (
	"testing"

	"brewcode-go/hw"
	"brewcode-go/hw/hwtest"
)

func TestDispatchFansOutByEventMask(t *testing.T) {
	pins := hwtest.NewPins()
	d := hw.NewDispatcher(pins)

	var rises, falls, both int
	if err := d.Attach(5, hw.EventRise, func(pin uint8, ev hw.Events) {
		if pin != 5 {
			t.Fatalf("callback saw pin %d, want 5", pin)
		}
		rises++
	}); err != nil {
		t.Fatalf("attach rise: %v", err)
	}
	if err := d.Attach(5, hw.EventFall, func(uint8, hw.Events) { falls++ }); err != nil {
		t.Fatalf("attach fall: %v", err)
	}
	if err := d.Attach(5, hw.EventRise|hw.EventFall, func(uint8, hw.Events) { both++ }); err != nil {
		t.Fatalf("attach both: %v", err)
	}

	p := pins.Pin(5)
	p.Drive(true)
	p.Drive(false)
	p.Drive(true)

	if rises != 2 || falls != 1 || both != 3 {
		t.Fatalf("rises=%d falls=%d both=%d, want 2/1/3", rises, falls, both)
	}
}

func TestDispatchRejectsBadArgs(t *testing.T) {
	pins := hwtest.NewPins()
	d := hw.NewDispatcher(pins)

	if err := d.Attach(40, hw.EventRise, func(uint8, hw.Events) {}); err == nil {
		t.Fatal("expected error for out-of-range pin")
	}
	if err := d.Attach(3, 0, func(uint8, hw.Events) {}); err == nil {
		t.Fatal("expected error for empty event mask")
	}
	if err := d.Attach(3, hw.EventRise, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestLedgerStampsAndSince(t *testing.T) {
	b := hwtest.NewBench()
	pins := hwtest.NewPins()
	d := hw.NewDispatcher(pins)
	l := hw.NewLedger(b.Clock)

	if err := l.Watch(d, 14, hw.EventRise); err != nil {
		t.Fatalf("watch: %v", err)
	}

	b.AdvanceUs(5000)
	pins.Pin(14).Drive(true)
	if got := l.ReadUs(14); got != 5000 {
		t.Fatalf("ReadUs = %d, want 5000", got)
	}

	b.AdvanceUs(2500)
	if got := l.SinceUs(14); got != 2500 {
		t.Fatalf("SinceUs = %d, want 2500", got)
	}

	// A second watch of the same events is a no-op, not a double-count.
	if err := l.Watch(d, 14, hw.EventRise); err != nil {
		t.Fatalf("re-watch: %v", err)
	}
	pins.Pin(14).Drive(false)
	pins.Pin(14).Drive(true)
	if got := l.ReadUs(14); got != 7500 {
		t.Fatalf("ReadUs after re-watch = %d, want 7500", got)
	}
}

func TestLedgerNeverFiredReadsZero(t *testing.T) {
	b := hwtest.NewBench()
	l := hw.NewLedger(b.Clock)
	if got := l.ReadUs(3); got != 0 {
		t.Fatalf("ReadUs = %d, want 0", got)
	}
	b.AdvanceUs(1234)
	if got := l.SinceUs(3); got != 1234 {
		t.Fatalf("SinceUs = %d, want time since boot", got)
	}
}

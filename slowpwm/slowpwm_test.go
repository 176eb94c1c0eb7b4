package slowpwm_test

import (
	"testing"

	"brewcode-go/hw/hwtest"
	"brewcode-go/slowpwm"
)

func newPWM(t *testing.T, periodMs int64, increments int) (*hwtest.Bench, *hwtest.Pins, *slowpwm.PWM) {
	t.Helper()
	b := hwtest.NewBench()
	pins := hwtest.NewPins()
	p, err := slowpwm.New(pins, b.Sched, slowpwm.Config{
		Pin:        11,
		PeriodMs:   periodMs,
		Increments: increments,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, pins, p
}

func TestDutyZeroStaysLow(t *testing.T) {
	b, pins, _ := newPWM(t, 1000, 64)
	for i := 0; i < 3; i++ {
		b.AdvanceMs(1000)
		if pins.Pin(11).Get() {
			t.Fatal("output high at duty 0")
		}
	}
}

func TestMidDutyHighThenLowWithinPeriod(t *testing.T) {
	b, pins, p := newPWM(t, 1000, 64)
	p.SetDuty(32)

	// Next period boundary raises the output.
	b.AdvanceMs(1000)
	if !pins.Pin(11).Get() {
		t.Fatal("output low at period start")
	}
	// Off at (period/increments)*duty = 15*32 = 480 ms in.
	b.AdvanceMs(479)
	if !pins.Pin(11).Get() {
		t.Fatal("output dropped before off point")
	}
	b.AdvanceMs(2)
	if pins.Pin(11).Get() {
		t.Fatal("output still high past off point")
	}
	// And high again at the next boundary.
	b.AdvanceMs(520)
	if !pins.Pin(11).Get() {
		t.Fatal("output low at following period start")
	}
}

func TestFullDutyStaysHighAllPeriod(t *testing.T) {
	b, pins, p := newPWM(t, 1000, 64)
	p.SetDuty(63)
	b.AdvanceMs(1000)
	for i := 0; i < 10; i++ {
		b.AdvanceMs(100)
		if !pins.Pin(11).Get() {
			t.Fatalf("output low %d ms into full-duty period", (i+1)*100)
		}
	}
}

func TestSetDutyClampsAndFloatScales(t *testing.T) {
	_, _, p := newPWM(t, 1000, 64)
	if got := p.SetDuty(200); got != 63 {
		t.Fatalf("SetDuty(200) = %d, want 63", got)
	}
	if got := p.SetDuty(-1); got != 0 {
		t.Fatalf("SetDuty(-1) = %d, want 0", got)
	}
	if got := p.SetFloatDuty(0.5); got != 31 {
		t.Fatalf("SetFloatDuty(0.5) = %d, want 31", got)
	}
	if got := p.SetFloatDuty(2); got != 63 {
		t.Fatalf("SetFloatDuty(2) = %d, want 63", got)
	}
	if got := p.SetFloatDuty(-1); got != 0 {
		t.Fatalf("SetFloatDuty(-1) = %d, want 0", got)
	}
	if p.Duty() != 0 {
		t.Fatalf("Duty = %d, want 0", p.Duty())
	}
}

// Duty changes apply no later than the next period boundary.
func TestDutyChangeTakesEffectNextPeriod(t *testing.T) {
	b, pins, p := newPWM(t, 1000, 64)
	b.AdvanceMs(1000)
	if pins.Pin(11).Get() {
		t.Fatal("output high at duty 0")
	}
	p.SetDuty(63)
	b.AdvanceMs(1000)
	if !pins.Pin(11).Get() {
		t.Fatal("new duty not applied at period boundary")
	}
}

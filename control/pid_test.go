package control

import (
	"testing"

	"brewcode-go/hw/hwtest"
)

type countingSensor struct {
	calls int
	value float32
}

func (s *countingSensor) Read() float32 {
	s.calls++
	return s.value
}

type recordingPlant struct {
	calls  int
	inputs []float32
}

func (p *recordingPlant) Apply(u float32) {
	p.calls++
	p.inputs = append(p.inputs, u)
}

// Ticks inside the dwell window return the cached input without touching
// the sensor or the plant again.
func TestPIDDwell(t *testing.T) {
	b := hwtest.NewBench()
	fb := &countingSensor{value: 10}
	plant := &recordingPlant{}
	pid := NewPID(b.Clock, Gains{P: 1}, fb, nil, plant, -100, 100, 100, 1000)
	pid.SetSetpoint(20)

	u1 := pid.Tick(nil)
	u2 := pid.Tick(nil)
	if u1 != u2 {
		t.Fatalf("dwell tick returned %v, want cached %v", u2, u1)
	}
	if fb.calls != 1 {
		t.Fatalf("sensor read %d times inside dwell, want 1", fb.calls)
	}
	if plant.calls != 1 {
		t.Fatalf("plant applied %d times inside dwell, want 1", plant.calls)
	}

	b.AdvanceMs(100)
	pid.Tick(nil)
	if fb.calls != 2 || plant.calls != 2 {
		t.Fatalf("sensor/plant = %d/%d after dwell passed, want 2/2", fb.calls, plant.calls)
	}
}

// Whatever the gains and the error history, the applied input stays
// inside [uLB, uUB]: the integral bounds are recomputed each tick to
// land the sum exactly at the clamp.
func TestPIDClampInvariance(t *testing.T) {
	cases := []struct {
		name  string
		gains Gains
	}{
		{"p-only", Gains{P: 5}},
		{"pi", Gains{P: 2, I: 0.5}},
		{"pid", Gains{P: 2, I: 0.5, D: 0.1}},
		{"integral-heavy", Gains{P: 0.1, I: 10}},
		{"with-ff", Gains{P: 1, I: 0.2, F: 3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := hwtest.NewBench()
			fb := &countingSensor{}
			ff := &countingSensor{value: 50}
			plant := &recordingPlant{}
			pid := NewPID(b.Clock, c.gains, fb, ff, plant, 0, 1, 10, 500)
			pid.SetBias(0.25)

			// Drive a huge persistent error, then slam the setpoint the
			// other way; the integral must not wind up past the clamp.
			pid.SetSetpoint(1000)
			for i := 0; i < 200; i++ {
				b.AdvanceMs(10)
				pid.Tick(nil)
			}
			pid.SetSetpoint(-1000)
			for i := 0; i < 200; i++ {
				b.AdvanceMs(10)
				pid.Tick(nil)
			}
			for i, u := range plant.inputs {
				if u < 0 || u > 1 {
					t.Fatalf("input %d = %v outside [0,1]", i, u)
				}
			}
			// After the flip the output must reach the lower clamp
			// promptly rather than unwinding a huge integral.
			if got := plant.inputs[len(plant.inputs)-1]; got != 0 {
				t.Fatalf("final input = %v, want pinned at 0", got)
			}
		})
	}
}

func TestPIDProportionalAndBiasTerms(t *testing.T) {
	b := hwtest.NewBench()
	fb := &countingSensor{value: 4}
	pid := NewPID(b.Clock, Gains{P: 2}, fb, nil, nil, -100, 100, 10, 500)
	pid.SetSetpoint(10)
	pid.SetBias(1)

	var v Viewer
	u := pid.Tick(&v)
	if v.P != 12 { // 2 * (10-4)
		t.Fatalf("P term = %v, want 12", v.P)
	}
	if v.Bias != 1 {
		t.Fatalf("bias term = %v, want 1", v.Bias)
	}
	if u != 13 {
		t.Fatalf("u = %v, want 13", u)
	}
}

func TestPIDFeedForwardTerm(t *testing.T) {
	b := hwtest.NewBench()
	fb := &countingSensor{value: 10}
	ff := &countingSensor{value: 200}
	pid := NewPID(b.Clock, Gains{P: 1, F: 0.1}, fb, ff, nil, -100, 100, 10, 500)
	pid.SetSetpoint(10)

	var v Viewer
	pid.Tick(&v)
	if v.FF != 20 {
		t.Fatalf("FF term = %v, want 20", v.FF)
	}
}

func TestPIDAtSetpoint(t *testing.T) {
	b := hwtest.NewBench()
	fb := &countingSensor{value: 94}
	pid := NewPID(b.Clock, Gains{P: 1}, fb, nil, nil, 0, 1, 10, 500)
	pid.SetSetpoint(95)
	if !pid.AtSetpoint(2.5) {
		t.Fatal("94 should be at setpoint 95 with tol 2.5")
	}
	if pid.AtSetpoint(0.5) {
		t.Fatal("94 should not be at setpoint 95 with tol 0.5")
	}
}

// Reset clears the windows but keeps the cached input for dwell reads.
func TestPIDResetKeepsCachedInput(t *testing.T) {
	b := hwtest.NewBench()
	fb := &countingSensor{value: 5}
	pid := NewPID(b.Clock, Gains{P: 1, I: 0.1}, fb, nil, nil, -100, 100, 100, 500)
	pid.SetSetpoint(10)
	u := pid.Tick(nil)
	pid.Reset()
	if got := pid.Tick(nil); got != u {
		t.Fatalf("cached input lost across Reset: %v != %v", got, u)
	}
}

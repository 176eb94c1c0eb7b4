package control

import "testing"

// The running sum follows the trapezoidal rule; the first point only
// primes it.
func TestIntegralTrapezoid(t *testing.T) {
	i := NewIntegral(-1e6, 1e6)
	i.AddDatapoint(0, 2)
	if got := i.Read(); got != 0 {
		t.Fatalf("Read after one point = %v, want 0", got)
	}
	i.AddDatapoint(1000, 4) // trapezoid (2+4)/2 * 1000 ms
	if got := i.Read(); got != 3000 {
		t.Fatalf("Read = %v, want 3000", got)
	}
	i.AddDatapoint(1500, 0) // + (4+0)/2 * 500
	if got := i.Read(); got != 4000 {
		t.Fatalf("Read = %v, want 4000", got)
	}
}

func TestIntegralNegativeArea(t *testing.T) {
	i := NewIntegral(-1e6, 1e6)
	i.AddDatapoint(0, -1)
	i.AddDatapoint(2000, -3)
	if got := i.Read(); got != -4000 {
		t.Fatalf("Read = %v, want -4000", got)
	}
}

// Reads clamp the stored sum, and the clamp sticks: shrinking the bounds
// discards the excess area for good.
func TestIntegralClamp(t *testing.T) {
	i := NewIntegral(-10, 10)
	i.AddDatapoint(0, 100)
	i.AddDatapoint(1000, 100)
	if got := i.Read(); got != 10 {
		t.Fatalf("Read = %v, want upper bound 10", got)
	}

	i.SetBounds(-5, 5)
	if got := i.Read(); got != 5 {
		t.Fatalf("Read = %v after tightening, want 5", got)
	}
	i.SetBounds(-1e6, 1e6)
	if got := i.Read(); got != 5 {
		t.Fatalf("clamped area came back: Read = %v, want 5", got)
	}
}

func TestIntegralReset(t *testing.T) {
	i := NewIntegral(-1e6, 1e6)
	i.AddDatapoint(0, 5)
	i.AddDatapoint(1000, 5)
	i.Reset()
	if got := i.Read(); got != 0 {
		t.Fatalf("Read after Reset = %v, want 0", got)
	}
	// The next add only primes again.
	i.AddDatapoint(2000, 7)
	if got := i.Read(); got != 0 {
		t.Fatalf("Read after re-prime = %v, want 0", got)
	}
}

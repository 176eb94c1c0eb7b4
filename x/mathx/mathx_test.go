package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 || Clamp(-1, 0, 10) != 0 || Clamp(11, 0, 10) != 10 {
		t.Fatal("Clamp failed")
	}
	// Swapped bounds are tolerated.
	if Clamp(5, 10, 0) != 5 || Clamp(50, 10, 0) != 10 {
		t.Fatal("Clamp with swapped bounds failed")
	}
}

func TestBetweenMinMaxAbs(t *testing.T) {
	if !Between(5, 0, 10) || Between(11, 0, 10) || !Between(5, 10, 0) {
		t.Fatal("Between failed")
	}
	if Min(2, 3) != 2 || Max(2, 3) != 3 {
		t.Fatal("Min/Max failed")
	}
	if Abs(-7) != 7 || Abs(int32(4)) != 4 {
		t.Fatal("Abs failed")
	}
}

func TestLerpI32(t *testing.T) {
	cases := []struct {
		a, b     int32
		num, den int64
		want     int32
	}{
		{0, 100, 0, 2000, 0},
		{0, 100, 1000, 2000, 50},
		{0, 100, 2000, 2000, 100},
		{0, 100, 3000, 2000, 100}, // past the end snaps to b
		{0, 100, -5, 2000, 0},     // before the start snaps to a
		{100, 0, 500, 1000, 50},   // descending
		{50, 50, 123, 1000, 50},   // flat
		{0, 100, 10, 0, 100},      // zero window snaps to b
	}
	for _, c := range cases {
		if got := LerpI32(c.a, c.b, c.num, c.den); got != c.want {
			t.Fatalf("LerpI32(%d,%d,%d,%d) = %d, want %d", c.a, c.b, c.num, c.den, got, c.want)
		}
	}
}

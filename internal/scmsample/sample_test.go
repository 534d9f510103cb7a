package scmsample

import "testing"

func TestLerp(t *testing.T) {
	if got := lerp(0, 10, 0.5); got != 5 {
		t.Fatalf("lerp(0,10,0.5) = %v, want 5", got)
	}
	if got := lerp(2, 2, 0.7); got != 2 {
		t.Fatalf("lerp(2,2,0.7) = %v, want 2", got)
	}
}

func TestClampIndex(t *testing.T) {
	cases := []struct {
		i, n, want int64
	}{
		{-1, 4, 0},
		{4, 4, 3},
		{2, 4, 2},
		{0, 1, 0},
	}
	for _, c := range cases {
		if got := clampIndex(c.i, c.n); got != c.want {
			t.Fatalf("clampIndex(%d,%d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}

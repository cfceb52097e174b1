package core

// Topology precomputes wrapped neighbor indices for an X-by-Y periodic
// grid. Each map gives the coordinate of the adjacent cell along one
// axis under toroidal boundary conditions, so XPlus[X-1] == 0 and
// XMinus[0] == X-1. The maps are immutable after construction and are
// shared read-only by every simulation step.
type Topology struct {
	X, Y int

	XMinus, XPlus []int
	YMinus, YPlus []int
}

// NewTopology builds the four neighbor maps for the given dimensions.
// Construction is total: degenerate axes of size 1 wrap to themselves.
func NewTopology(x, y int) *Topology {
	if x <= 0 {
		x = 1
	}
	if y <= 0 {
		y = 1
	}
	t := &Topology{
		X:      x,
		Y:      y,
		XMinus: make([]int, x),
		XPlus:  make([]int, x),
		YMinus: make([]int, y),
		YPlus:  make([]int, y),
	}
	for i := 0; i < x; i++ {
		t.XMinus[i] = (i - 1 + x) % x
		t.XPlus[i] = (i + 1) % x
	}
	for j := 0; j < y; j++ {
		t.YMinus[j] = (j - 1 + y) % y
		t.YPlus[j] = (j + 1) % y
	}
	return t
}

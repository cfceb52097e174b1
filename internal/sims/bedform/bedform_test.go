package bedform

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"bedform/internal/core"
)

func newTestSim(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	sim, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	return sim
}

func TestResetDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 32
	cfg.Height = 16
	cfg.Seed = 99

	sim := newTestSim(t, cfg)
	initial := append([]float64(nil), sim.Field().Cells()...)

	// Mutate state to ensure Reset rebuilds from scratch.
	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	sim.Reset(0)

	if !slices.Equal(initial, sim.Field().Cells()) {
		t.Fatal("Reset with config seed not deterministic")
	}
	if sim.StepCount() != 0 {
		t.Fatalf("Reset must clear the step counter, got %d", sim.StepCount())
	}

	sim.Reset(777)
	other := append([]float64(nil), sim.Field().Cells()...)
	sim.Reset(777)
	if !slices.Equal(other, sim.Field().Cells()) {
		t.Fatal("Reset with explicit seed not deterministic")
	}
	if slices.Equal(initial, other) {
		t.Fatal("different seeds should produce different initial beds")
	}

	for _, v := range initial {
		if v < 0 || v >= 1 {
			t.Fatalf("initial height %v outside [0,1)", v)
		}
	}
}

func TestRunProducesOrderedSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 20
	cfg.Height = 10

	sim := newTestSim(t, cfg)
	frames, err := sim.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("got %d snapshots, want 5", len(frames))
	}
	for i, f := range frames {
		if f.W != 20 || f.H != 10 {
			t.Fatalf("snapshot %d has shape %dx%d", i, f.W, f.H)
		}
	}
	if !slices.Equal(frames[4].Cells(), sim.Field().Cells()) {
		t.Fatal("last snapshot must match the current field")
	}
	if slices.Equal(frames[0].Cells(), frames[4].Cells()) {
		t.Fatal("bed did not evolve over five steps")
	}
}

func TestRunZeroStepsIsIdempotent(t *testing.T) {
	sim := newTestSim(t, DefaultConfig())
	before := append([]float64(nil), sim.Field().Cells()...)

	frames, err := sim.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run(0): %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("Run(0) returned %d snapshots", len(frames))
	}
	if !slices.Equal(before, sim.Field().Cells()) {
		t.Fatal("Run(0) mutated the field")
	}
}

func TestRunNegativeStepsFails(t *testing.T) {
	sim := newTestSim(t, DefaultConfig())
	_, err := sim.Run(context.Background(), -1)
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Run(-1) = %v, want ErrInvalidArgument", err)
	}
}

func TestRunHonorsCancellationAtStepBoundary(t *testing.T) {
	sim := newTestSim(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, err := sim.Run(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run on canceled context = %v, want context.Canceled", err)
	}
	if len(frames) != 0 {
		t.Fatalf("canceled before the first step but got %d snapshots", len(frames))
	}
	if sim.StepCount() != 0 {
		t.Fatalf("no step should have been applied, got %d", sim.StepCount())
	}
}

// stepBoundaryCtx reports cancellation after a fixed number of Err
// checks, standing in for an interrupt arriving while a run is underway.
type stepBoundaryCtx struct {
	context.Context
	allow int
}

func (c *stepBoundaryCtx) Err() error {
	if c.allow > 0 {
		c.allow--
		return nil
	}
	return context.Canceled
}

func TestRunReturnsPartialSnapshotsOnMidRunCancellation(t *testing.T) {
	sim := newTestSim(t, DefaultConfig())
	ctx := &stepBoundaryCtx{Context: context.Background(), allow: 3}

	frames, err := sim.Run(ctx, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run after mid-run cancellation = %v, want context.Canceled", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d snapshots, want the 3 completed before cancellation", len(frames))
	}
	if sim.StepCount() != len(frames) {
		t.Fatalf("StepCount() = %d, want %d (one per returned snapshot)", sim.StepCount(), len(frames))
	}
	if !slices.Equal(sim.Field().Cells(), frames[len(frames)-1].Cells()) {
		t.Fatalf("field after cancellation does not match the last snapshot")
	}
}

func TestSnapshotsAreImmutableCopies(t *testing.T) {
	sim := newTestSim(t, DefaultConfig())
	frames, err := sim.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	frames[0].Cells()[0] = 9999
	if sim.Field().Cells()[0] == 9999 {
		t.Fatal("mutating a snapshot leaked into the live field")
	}
}

func TestDeterministicRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 24
	cfg.Height = 12
	cfg.Seed = 5
	cfg.Workers = 4

	a := newTestSim(t, cfg)
	b := newTestSim(t, cfg)

	framesA, err := a.Run(context.Background(), 8)
	if err != nil {
		t.Fatalf("Run a: %v", err)
	}
	framesB, err := b.Run(context.Background(), 8)
	if err != nil {
		t.Fatalf("Run b: %v", err)
	}

	for i := range framesA {
		if !slices.Equal(framesA[i].Cells(), framesB[i].Cells()) {
			t.Fatalf("snapshots diverged at step %d", i)
		}
	}
}

func TestSaltationConservesMass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 50
	cfg.Height = 20
	cfg.Params.D = 0 // isolate the transport phase

	sim := newTestSim(t, cfg)
	before := sim.Field().Sum()

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	after := sim.Field().Sum()
	if math.Abs(after-before) > 1e-9 {
		t.Fatalf("transport changed total mass: before=%v after=%v", before, after)
	}
}

func TestPhaseTwoConservesPhaseOneMass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 30
	cfg.Height = 10

	sim := newTestSim(t, cfg)
	if err := sim.relax(); err != nil {
		t.Fatalf("relax: %v", err)
	}

	sum := func(xs []float64) float64 {
		total := 0.0
		for _, v := range xs {
			total += v
		}
		return total
	}
	mid := sum(sim.cur)

	if err := sim.saltate(); err != nil {
		t.Fatalf("saltate: %v", err)
	}
	if after := sum(sim.cur); math.Abs(after-mid) > 1e-9 {
		t.Fatalf("saltation changed total mass: %v -> %v", mid, after)
	}
}

func TestSelfTransportIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 4
	cfg.Height = 4
	cfg.Params.D = 0
	cfg.Params.Q = 1
	cfg.Params.L0 = 0
	cfg.Params.B = 0

	sim := newTestSim(t, cfg)
	// Exactly representable values so the -Q/+Q round trip is lossless.
	for i := range sim.cur {
		sim.cur[i] = 0.25 * float64(i%5)
	}
	before := append([]float64(nil), sim.cur...)

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !slices.Equal(before, sim.cur) {
		t.Fatal("dest(i,j)=i must leave every cell unchanged")
	}
}

func TestScatterCollisionAccumulates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 8
	cfg.Height = 1
	cfg.Params.D = 0
	cfg.Params.Q = 0.5
	cfg.Params.L0 = 0
	cfg.Params.B = 1

	sim := newTestSim(t, cfg)
	for i := range sim.cur {
		sim.cur[i] = 0
	}
	// Columns 0 (L=2) and 1 (L=1) both land on column 2, which also
	// receives its own zero-length hop.
	sim.cur[0] = 2
	sim.cur[1] = 1

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	want := []float64{1.5, 0.5, 1.0, 0, 0, 0, 0, 0}
	if !slices.Equal(sim.cur, want) {
		t.Fatalf("scatter result = %v, want %v", sim.cur, want)
	}
}

func spikeSim(t *testing.T, legacy bool) *Simulator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Width = 5
	cfg.Height = 5
	cfg.Params.Q = 0 // isolate the diffusion phase
	cfg.Params.LegacyDiagonals = legacy

	sim := newTestSim(t, cfg)
	for i := range sim.cur {
		sim.cur[i] = 0
	}
	sim.cur[sim.topo.X*2+2] = 1 // spike at (2,2)
	return sim
}

func TestDiffusionSpikeSpread(t *testing.T) {
	sim := spikeSim(t, false)
	d := sim.cfg.Params.D

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	at := func(x, y int) float64 { return sim.cur[y*5+x] }
	const tol = 1e-12

	if got := at(2, 2); math.Abs(got-(1-d)) > tol {
		t.Fatalf("center = %v, want %v", got, 1-d)
	}
	for _, c := range [][2]int{{1, 2}, {3, 2}, {2, 1}, {2, 3}} {
		if got := at(c[0], c[1]); math.Abs(got-d/6) > tol {
			t.Fatalf("axis neighbor (%d,%d) = %v, want %v", c[0], c[1], got, d/6)
		}
	}
	for _, c := range [][2]int{{1, 1}, {3, 1}, {1, 3}, {3, 3}} {
		if got := at(c[0], c[1]); math.Abs(got-d/12) > tol {
			t.Fatalf("diagonal neighbor (%d,%d) = %v, want %v", c[0], c[1], got, d/12)
		}
	}
	for _, c := range [][2]int{{0, 0}, {4, 2}, {0, 2}, {2, 0}, {2, 4}} {
		if got := at(c[0], c[1]); got != 0 {
			t.Fatalf("cell (%d,%d) = %v, want untouched", c[0], c[1], got)
		}
	}
}

func TestDiffusionSpikeSpreadLegacy(t *testing.T) {
	sim := spikeSim(t, true)
	d := sim.cfg.Params.D

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	at := func(x, y int) float64 { return sim.cur[y*5+x] }
	const tol = 1e-12

	if got := at(2, 2); math.Abs(got-(1-d)) > tol {
		t.Fatalf("center = %v, want %v", got, 1-d)
	}
	for _, c := range [][2]int{{1, 2}, {3, 2}, {2, 1}, {2, 3}} {
		if got := at(c[0], c[1]); math.Abs(got-d/6) > tol {
			t.Fatalf("axis neighbor (%d,%d) = %v, want %v", c[0], c[1], got, d/6)
		}
	}
	// The duplicated (x-1, y+1) sample means the cell south-west of the
	// spike counts it twice and the north-west diagonal never sees it.
	if got := at(1, 1); math.Abs(got-d/12) > tol {
		t.Fatalf("(1,1) = %v, want %v", got, d/12)
	}
	if got := at(1, 3); math.Abs(got-d/12) > tol {
		t.Fatalf("(1,3) = %v, want %v", got, d/12)
	}
	if got := at(3, 1); math.Abs(got-d/6) > tol {
		t.Fatalf("(3,1) = %v, want doubled share %v", got, d/6)
	}
	if got := at(3, 3); got != 0 {
		t.Fatalf("(3,3) = %v, want 0 under the legacy stencil", got)
	}
}

func TestStepDetectsNumericInstability(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 16
	cfg.Height = 8

	sim := newTestSim(t, cfg)
	sim.cur[5] = math.Inf(1)

	err := sim.Step()
	if !errors.Is(err, core.ErrNumericInstability) {
		t.Fatalf("Step = %v, want ErrNumericInstability", err)
	}
	var stepErr *core.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error %v does not carry step context", err)
	}
	if stepErr.Step != 0 {
		t.Fatalf("failing step reported as %d, want 0", stepErr.Step)
	}
	if sim.StepCount() != 0 {
		t.Fatal("a failed step must not count as completed")
	}
}

func TestShapePreservedAcrossSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 7
	cfg.Height = 3

	sim := newTestSim(t, cfg)
	for i := 0; i < 10; i++ {
		if err := sim.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		f := sim.Field()
		if f.W != 7 || f.H != 3 || len(f.Cells()) != 21 {
			t.Fatalf("shape changed after step %d: %dx%d len=%d", i, f.W, f.H, len(f.Cells()))
		}
		for _, v := range f.Cells() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite value after step %d", i)
			}
		}
	}
}

func TestTinyGridsStep(t *testing.T) {
	for _, size := range []core.Size{{W: 1, H: 1}, {W: 2, H: 1}, {W: 1, H: 2}, {W: 2, H: 2}} {
		cfg := DefaultConfig()
		cfg.Width = size.W
		cfg.Height = size.H
		cfg.Workers = 8 // more workers than rows

		sim := newTestSim(t, cfg)
		if err := sim.Step(); err != nil {
			t.Fatalf("%dx%d Step: %v", size.W, size.H, err)
		}
	}
}

func TestHopFieldClampsNegativeLengths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 4
	cfg.Height = 1
	cfg.Params.L0 = 1
	cfg.Params.B = -2

	sim := newTestSim(t, cfg)
	sim.cur[0] = 1 // L = 1 - 2 = -1, clamps to 0
	sim.cur[1] = 0.25

	hops := sim.HopField()
	if hops[0] != 0 {
		t.Fatalf("hop for steep cell = %v, want clamped 0", hops[0])
	}
	if want := 0.5; hops[1] != want {
		t.Fatalf("hop = %v, want %v", hops[1], want)
	}
}

func TestDisplayQuantization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 8
	cfg.Height = 2

	sim := newTestSim(t, cfg)
	if len(sim.Cells()) != 16 {
		t.Fatalf("display length %d, want 16", len(sim.Cells()))
	}
	for _, v := range sim.Cells() {
		if int(v) >= paletteSize {
			t.Fatalf("display index %d exceeds palette", v)
		}
	}

	// A flat bed maps to the middle of the ramp.
	for i := range sim.cur {
		sim.cur[i] = 3.25
	}
	sim.rebuildDisplay()
	for _, v := range sim.Cells() {
		if v != paletteSize/2 {
			t.Fatalf("flat bed display index %d, want %d", v, paletteSize/2)
		}
	}

	if len(sim.Palette()) != paletteSize {
		t.Fatalf("palette size %d, want %d", len(sim.Palette()), paletteSize)
	}
}

func TestInvalidConstruction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	if _, err := NewWithConfig(cfg); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("zero width accepted: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Params.D = math.NaN()
	if _, err := NewWithConfig(cfg); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("NaN diffusion rate accepted: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Params.Q = -1
	if _, err := NewWithConfig(cfg); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("negative flux accepted: %v", err)
	}
}

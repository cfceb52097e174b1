package bedform

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"bedform/internal/core"
)

// Simulator evolves a sand bed on a doubly periodic grid using the cell
// model of Nishimori & Ouchi (1993). Each step applies two sub-phases:
// diffusive relaxation (rolling and sliding) over a 9-point stencil,
// then saltation transport that hops a fixed mass Q downwind along the
// X axis by a height-dependent length.
type Simulator struct {
	cfg  Config
	w, h int

	topo *core.Topology

	cur []float64
	nxt []float64
	dst []int // scratch: linear destination index per cell

	display []uint8

	completed int
}

// New returns a Simulator with the provided dimensions using defaults.
func New(w, h int) (*Simulator, error) {
	cfg := DefaultConfig()
	cfg.Width = w
	cfg.Height = h
	return NewWithConfig(cfg)
}

// NewWithConfig returns a Simulator configured from the provided options.
// The initial bed is seeded from cfg.Seed.
func NewWithConfig(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	total := cfg.Width * cfg.Height
	s := &Simulator{
		cfg:     cfg,
		w:       cfg.Width,
		h:       cfg.Height,
		topo:    core.NewTopology(cfg.Width, cfg.Height),
		cur:     make([]float64, total),
		nxt:     make([]float64, total),
		dst:     make([]int, total),
		display: make([]uint8, total),
	}
	s.Reset(cfg.Seed)
	return s, nil
}

// Name returns the simulation identifier.
func (s *Simulator) Name() string { return "bedform" }

// Size reports the grid dimensions.
func (s *Simulator) Size() core.Size { return core.Size{W: s.w, H: s.h} }

// Cells exposes the quantized display buffer.
func (s *Simulator) Cells() []uint8 { return s.display }

// StepCount reports the number of steps completed since the last Reset.
func (s *Simulator) StepCount() int { return s.completed }

// Field returns an immutable copy of the current height field.
func (s *Simulator) Field() *core.FloatGrid {
	g := core.NewFloatGrid(s.w, s.h)
	copy(g.Cells(), s.cur)
	return g
}

// HopField returns the saltation length of every cell for the current
// field, clamped at zero exactly as the transport phase clamps it.
func (s *Simulator) HopField() []float64 {
	out := make([]float64, len(s.cur))
	for i, v := range s.cur {
		l := s.cfg.Params.L0 + s.cfg.Params.B*v
		if l < 0 {
			l = 0
		}
		out[i] = l
	}
	return out
}

// Reset rebuilds the initial bed with independent uniform heights in
// [0, 1) drawn from the provided seed. A zero seed keeps the config seed.
func (s *Simulator) Reset(seed int64) {
	effective := seed
	if effective == 0 {
		effective = s.cfg.Seed
	}
	core.FillUniform(core.NewRNG(effective).Source(), s.cur)
	s.completed = 0
	s.rebuildDisplay()
}

// Step applies one full update: diffusive relaxation followed by
// saltation transport. On error the run must be considered aborted;
// snapshots taken before the failing step remain valid.
func (s *Simulator) Step() error {
	if err := s.relax(); err != nil {
		return &core.StepError{Step: s.completed, Err: err}
	}
	if err := s.saltate(); err != nil {
		return &core.StepError{Step: s.completed, Err: err}
	}
	s.completed++
	s.rebuildDisplay()
	return nil
}

// Run advances the model by steps, returning one immutable snapshot per
// completed step in order. Steps are strictly sequential; cancellation
// is honored at step boundaries only, so the field always reflects a
// whole number of applied steps. On cancellation or a failed step the
// snapshots completed so far are returned alongside the error.
func (s *Simulator) Run(ctx context.Context, steps int) ([]*core.FloatGrid, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: steps must be non-negative, got %d",
			core.ErrInvalidArgument, steps)
	}
	snapshots := make([]*core.FloatGrid, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return snapshots, err
		}
		if err := s.Step(); err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, s.Field())
	}
	return snapshots, nil
}

// relax applies the rolling-and-sliding stencil into the back buffer and
// swaps it in. Rows are split across workers; every read goes to the
// pre-phase buffer so the split needs no coordination. Each worker also
// rejects non-finite results, failing the step fast instead of letting
// corruption spread. The buffers are only swapped on success.
func (s *Simulator) relax() error {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > s.h {
		workers = s.h
	}
	band := (s.h + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < s.h; start += band {
		y0, y1 := start, start+band
		if y1 > s.h {
			y1 = s.h
		}
		g.Go(func() error {
			return s.relaxRows(y0, y1)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.cur, s.nxt = s.nxt, s.cur
	return nil
}

func (s *Simulator) relaxRows(y0, y1 int) error {
	d := s.cfg.Params.D
	legacy := s.cfg.Params.LegacyDiagonals
	w := s.w
	t := s.topo
	for y := y0; y < y1; y++ {
		yc := y * w
		ym := t.YMinus[y] * w
		yp := t.YPlus[y] * w
		for x := 0; x < w; x++ {
			xm := t.XMinus[x]
			xp := t.XPlus[x]
			axis := s.cur[yc+xp] + s.cur[yc+xm] + s.cur[yp+x] + s.cur[ym+x]
			var diag float64
			if legacy {
				// Legacy stencil: (x-1, y+1) is sampled twice and
				// (x-1, y-1) never.
				diag = s.cur[yp+xp] + s.cur[ym+xp] + s.cur[yp+xm] + s.cur[yp+xm]
			} else {
				diag = s.cur[yp+xp] + s.cur[ym+xp] + s.cur[yp+xm] + s.cur[ym+xm]
			}
			v := s.cur[yc+x] + d*(-s.cur[yc+x]+axis/6+diag/12)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.ErrNumericInstability
			}
			s.nxt[yc+x] = v
		}
	}
	return nil
}

// saltate moves a fixed mass Q from every cell to a destination in the
// same row, round(x + L) mod X with L = max(0, L0 + b*h). Destinations
// are resolved for the whole grid before any mass moves, and the
// scatter-add is serialized so colliding destinations accumulate
// instead of overwriting.
func (s *Simulator) saltate() error {
	p := s.cfg.Params
	w := s.w
	for y := 0; y < s.h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			l := p.L0 + p.B*s.cur[row+x]
			if l < 0 {
				l = 0 // no backward saltation
			}
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return core.ErrNumericInstability
			}
			d := int(math.Round(float64(x)+l)) % w
			if d < 0 {
				d += w
			}
			s.dst[row+x] = row + d
		}
	}

	q := p.Q
	for i := range s.cur {
		s.cur[i] -= q // entrainment
	}
	for _, d := range s.dst {
		s.cur[d] += q // settling
	}
	return nil
}

func init() {
	core.Register("bedform", func(cfg map[string]string) core.Sim {
		sim, err := NewWithConfig(FromMap(cfg))
		if err != nil {
			return nil
		}
		return sim
	})
}

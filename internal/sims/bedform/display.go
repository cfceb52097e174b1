package bedform

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// The display buffer quantizes the unbounded height field onto a small
// elevation ramp so the shared rendering path can treat the bed like
// any other cell grid. The ramp runs trough blue to crest sand.
const paletteSize = 32

var bedPalette = buildBedPalette()

// Palette exposes the color palette used for rendering the bed.
func (s *Simulator) Palette() []color.RGBA {
	return bedPalette
}

func buildBedPalette() []color.RGBA {
	palette := make([]color.RGBA, paletteSize)
	for i := range palette {
		t := float64(i) / float64(paletteSize-1)
		palette[i] = elevationColor(t)
	}
	return palette
}

func elevationColor(t float64) color.RGBA {
	t = clamp01(t)
	stops := []struct {
		t   float64
		col color.RGBA
	}{
		{0.0, color.RGBA{R: 40, G: 60, B: 120, A: 255}},
		{0.25, color.RGBA{R: 70, G: 105, B: 160, A: 255}},
		{0.5, color.RGBA{R: 90, G: 150, B: 100, A: 255}},
		{0.75, color.RGBA{R: 190, G: 160, B: 80, A: 255}},
		{1.0, color.RGBA{R: 240, G: 235, B: 215, A: 255}},
	}
	for i := 1; i < len(stops); i++ {
		curr := stops[i]
		if t <= curr.t {
			prev := stops[i-1]
			span := curr.t - prev.t
			var local float64
			if span > 0 {
				local = (t - prev.t) / span
			}
			return lerpRGBA(prev.col, curr.col, clamp01(local))
		}
	}
	return stops[len(stops)-1].col
}

// rebuildDisplay renormalizes the field onto the palette. A flat bed
// maps to the middle of the ramp.
func (s *Simulator) rebuildDisplay() {
	if len(s.cur) == 0 {
		return
	}
	lo := floats.Min(s.cur)
	hi := floats.Max(s.cur)
	if hi <= lo {
		for i := range s.display {
			s.display[i] = paletteSize / 2
		}
		return
	}
	scale := float64(paletteSize-1) / (hi - lo)
	for i, v := range s.cur {
		s.display[i] = uint8((v-lo)*scale + 0.5)
	}
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	t = clamp01(t)
	return color.RGBA{
		R: lerpComponent(a.R, b.R, t),
		G: lerpComponent(a.G, b.G, t),
		B: lerpComponent(a.B, b.B, t),
		A: lerpComponent(a.A, b.A, t),
	}
}

func lerpComponent(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

//go:build ebiten

package ui

import (
	"image/color"
	"math"

	"bedform/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type hopFieldProvider interface {
	HopField() []float64
}

// Overlay draws optional debugging visuals on top of the base simulation.
// Key 1 toggles a tint showing the saltation hop length per cell.
type Overlay struct {
	sim      core.Sim
	scale    int
	showHops bool
	maskImg  *ebiten.Image
	maskBuf  []byte
}

// NewOverlay constructs a new overlay instance.
func NewOverlay(sim core.Sim, scale int) *Overlay {
	return &Overlay{sim: sim, scale: scale}
}

// Update allows the overlay to update internal state.
func (o *Overlay) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit1) {
		o.showHops = !o.showHops
	}
}

// Draw renders the overlay onto the provided screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if !o.showHops {
		return
	}
	provider, ok := o.sim.(hopFieldProvider)
	if !ok {
		return
	}

	size := o.sim.Size()
	total := size.W * size.H
	if total == 0 {
		return
	}
	if o.maskImg == nil || o.maskImg.Bounds().Dx() != size.W || o.maskImg.Bounds().Dy() != size.H {
		o.maskImg = ebiten.NewImage(size.W, size.H)
		o.maskBuf = make([]byte, 4*total)
	}

	hops := provider.HopField()
	if len(hops) != total {
		return
	}

	maxHop := 0.0
	for _, l := range hops {
		if l > maxHop {
			maxHop = l
		}
	}

	tint := color.RGBA{R: 255, G: 120, B: 40}
	const maxAlpha = 140.0
	for i, l := range hops {
		base := i * 4
		var intensity float64
		if maxHop > 0 {
			intensity = l / maxHop
		}
		if intensity <= 0 {
			o.maskBuf[base+0] = 0
			o.maskBuf[base+1] = 0
			o.maskBuf[base+2] = 0
			o.maskBuf[base+3] = 0
			continue
		}
		alpha := uint8(math.Round(maxAlpha * intensity))
		o.maskBuf[base+0] = uint8(float64(tint.R) * intensity)
		o.maskBuf[base+1] = uint8(float64(tint.G) * intensity)
		o.maskBuf[base+2] = uint8(float64(tint.B) * intensity)
		o.maskBuf[base+3] = alpha
	}

	o.maskImg.WritePixels(o.maskBuf)
	op := &ebiten.DrawImageOptions{}
	scale := o.scale
	if scale <= 0 {
		scale = 1
	}
	op.GeoM.Scale(float64(scale), float64(scale))
	screen.DrawImage(o.maskImg, op)
}

//go:build ebiten

package ui

import (
	"image/color"

	"bedform/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

type parameterProvider interface {
	Parameters() core.ParameterSnapshot
}

// HUD renders the simulation's parameter snapshot as a text panel in the
// top-left corner of the view. Tab toggles it.
type HUD struct {
	sim      core.Sim
	visible  bool
	snapshot core.ParameterSnapshot
	panel    *ebiten.Image
}

// NewHUD constructs a HUD for the provided simulation.
func NewHUD(sim core.Sim) *HUD {
	return &HUD{sim: sim}
}

// Update handles the toggle key and refreshes the cached snapshot.
func (h *HUD) Update() {
	if h == nil {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		h.visible = !h.visible
	}
	if !h.visible {
		return
	}
	if provider, ok := h.sim.(parameterProvider); ok {
		h.snapshot = provider.Parameters()
	} else {
		h.snapshot = core.ParameterSnapshot{}
	}
}

// Draw paints the panel when visible.
func (h *HUD) Draw(screen *ebiten.Image) {
	if h == nil || !h.visible {
		return
	}
	lines := 0
	width := 0
	face := basicfont.Face7x13
	for _, group := range h.snapshot.Groups {
		lines += 1 + len(group.Params)
		if w := text.BoundString(face, group.Name).Dx(); w > width {
			width = w
		}
		for _, p := range group.Params {
			if w := text.BoundString(face, "  "+p.Label+"  "+p.Value).Dx(); w > width {
				width = w
			}
		}
	}
	if lines == 0 {
		lines = 1
		width = text.BoundString(face, "No parameters").Dx()
	}

	pw := width + 2*panelPadding
	ph := lines*lineHeight + 2*panelPadding
	if h.panel == nil || h.panel.Bounds().Dx() != pw || h.panel.Bounds().Dy() != ph {
		h.panel = ebiten.NewImage(pw, ph)
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 230})

	y := panelPadding + baseline
	if len(h.snapshot.Groups) == 0 {
		text.Draw(h.panel, "No parameters", face, panelPadding, y, dimText)
	}
	for _, group := range h.snapshot.Groups {
		text.Draw(h.panel, group.Name, face, panelPadding, y, headerText)
		y += lineHeight
		for _, p := range group.Params {
			text.Draw(h.panel, "  "+p.Label+"  "+p.Value, face, panelPadding, y, bodyText)
			y += lineHeight
		}
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(panelMargin, panelMargin)
	screen.DrawImage(h.panel, op)
}

var (
	headerText = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	bodyText   = color.RGBA{R: 220, G: 220, B: 230, A: 255}
	dimText    = color.RGBA{R: 160, G: 160, B: 170, A: 255}
)

const (
	panelPadding = 8
	panelMargin  = 4
	lineHeight   = 14
	baseline     = 10
)

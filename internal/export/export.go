// Package export renders height-field snapshots into image sequences and
// animations. It is a pure consumer of snapshots; nothing here feeds back
// into the simulation.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"bedform/internal/core"
)

// SaveImages writes one zero-padded PNG per frame under dir, named
// prefix0000.png onward. All frames share a single color extent so the
// sequence does not flicker as the relief grows.
func SaveImages(frames []*core.FloatGrid, dir, prefix string, palette []color.RGBA) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames to save", core.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	pal := toPalette(palette)
	lo, hi := sequenceExtent(frames)
	for i, f := range frames {
		img := renderFrame(f, pal, lo, hi)
		name := filepath.Join(dir, fmt.Sprintf("%s%04d.png", prefix, i))
		if err := imgio.Save(name, img, imgio.PNGEncoder()); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// SaveGIF encodes the frames as a looping animated GIF. delay is the
// per-frame delay in hundredths of a second.
func SaveGIF(frames []*core.FloatGrid, path string, delay int) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames to encode", core.ErrInvalidArgument)
	}
	if delay < 0 {
		delay = 0
	}

	pal := toPalette(nil)
	lo, hi := sequenceExtent(frames)
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, renderFrame(f, pal, lo, hi))
		anim.Delay = append(anim.Delay, delay)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(out, anim); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}

// sequenceExtent returns the minimum and maximum height across every frame.
func sequenceExtent(frames []*core.FloatGrid) (lo, hi float64) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, f := range frames {
		flo, fhi := f.Extent()
		lo = math.Min(lo, flo)
		hi = math.Max(hi, fhi)
	}
	return lo, hi
}

func renderFrame(g *core.FloatGrid, pal color.Palette, lo, hi float64) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, g.W, g.H), pal)
	last := len(pal) - 1

	var scale float64
	if hi > lo {
		scale = float64(last) / (hi - lo)
	}
	for i, v := range g.Cells() {
		idx := last / 2
		if scale > 0 {
			idx = int((v-lo)*scale + 0.5)
			if idx < 0 {
				idx = 0
			}
			if idx > last {
				idx = last
			}
		}
		img.Pix[i] = uint8(idx)
	}
	return img
}

// toPalette adapts an RGBA ramp for the image package, falling back to a
// plain grayscale ramp when the caller has none.
func toPalette(palette []color.RGBA) color.Palette {
	if len(palette) == 0 {
		pal := make(color.Palette, 32)
		for i := range pal {
			v := uint8(i * 255 / 31)
			pal[i] = color.RGBA{R: v, G: v, B: v, A: 255}
		}
		return pal
	}
	pal := make(color.Palette, len(palette))
	for i, c := range palette {
		pal[i] = c
	}
	return pal
}

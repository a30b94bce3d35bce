package omr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var labelColor = color.NRGBA{200, 0, 0, 255}

// RenderOverlay draws the evaluation on top of the sheet photo: a ring around
// every checked and corrected box and the question number left of each row.
// Without a photo the rings are drawn on a white canvas.
func RenderOverlay(r *Result, cfg OverlayConfig) *image.NRGBA {
	var img *image.NRGBA
	if r.Image != nil {
		img = imaging.Clone(r.Image)
	} else {
		img = blankCanvas(r)
	}

	checked := hexColor(cfg.CheckedColor, color.NRGBA{0, 192, 0, 255})
	corrected := hexColor(cfg.CorrectedColor, color.NRGBA{0, 0, 255, 255})
	thickness := max(cfg.Thickness, 1)

	questions := r.Answers.Questions()
	for q, row := range r.Bubbles {
		if q >= len(questions) || len(row) == 0 {
			continue
		}
		for i, b := range row {
			if i >= len(questions[q]) {
				break
			}
			switch questions[q][i] {
			case MarkChecked:
				drawRing(img, b.X, b.Y, r.Radius, thickness, checked)
			case MarkCorrected:
				drawRing(img, b.X, b.Y, r.Radius, thickness, corrected)
			}
		}

		label := strconv.Itoa(q + 1)
		x := row[0].X - r.Radius - 7*len(label) - 4
		drawText(img, max(x, 0), row[0].Y+4, label, labelColor)
	}

	return img
}

// WriteOverlayPNG renders the overlay and encodes it as PNG
func WriteOverlayPNG(w io.Writer, r *Result, cfg OverlayConfig) error {
	if err := imaging.Encode(w, RenderOverlay(r, cfg), imaging.PNG); err != nil {
		return fmt.Errorf("encoding overlay: %w", err)
	}
	return nil
}

// SaveOverlay renders the overlay to a file; the format follows the extension.
func SaveOverlay(path string, r *Result, cfg OverlayConfig) error {
	if err := imaging.Save(RenderOverlay(r, cfg), path); err != nil {
		return fmt.Errorf("saving overlay %s: %w", path, err)
	}
	return nil
}

func blankCanvas(r *Result) *image.NRGBA {
	w, h := 1, 1
	for _, row := range r.Bubbles {
		for _, b := range row {
			w = max(w, b.X+2*r.Radius)
			h = max(h, b.Y+2*r.Radius)
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// hexColor parses "#RRGGBB", falling back to def on malformed input
func hexColor(hex string, def color.NRGBA) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return def
	}
	r, g, b := c.RGB255()
	return color.NRGBA{r, g, b, 255}
}

// drawRing draws a circle outline of the given thickness, growing inwards from radius
func drawRing(img draw.Image, cx, cy, radius, thickness int, c color.Color) {
	bounds := img.Bounds()
	outer := radius * radius
	inner := max(radius-thickness, 0)
	inner *= inner
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d > outer || d < inner {
				continue
			}
			x, y := cx+dx, cy+dy
			if image.Pt(x, y).In(bounds) {
				img.Set(x, y, c)
			}
		}
	}
}

// drawText renders text onto an image with its baseline at y
func drawText(img draw.Image, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

package omr

import (
	"fmt"
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// GridRenderer draws the recovered answer grid as vector graphics: one circle
// per visited box, filled by mark, with a line through each question row.
// One canvas unit equals one sheet pixel.
type GridRenderer struct {
	Result     *Result
	Checked    color.RGBA
	Corrected  color.RGBA
	Padding    float64
	Resolution canvas.Resolution
}

// NewGridRenderer creates a grid renderer using the overlay colours
func NewGridRenderer(r *Result, cfg OverlayConfig) *GridRenderer {
	res := canvas.DPMM(1)
	if cfg.Resolution > 0 {
		res = canvas.DPI(cfg.Resolution)
	}
	return &GridRenderer{
		Result:     r,
		Checked:    nrgbaToRGBA(hexColor(cfg.CheckedColor, color.NRGBA{0, 192, 0, 255})),
		Corrected:  nrgbaToRGBA(hexColor(cfg.CorrectedColor, color.NRGBA{0, 0, 255, 255})),
		Padding:    float64(r.Radius),
		Resolution: res,
	}
}

// RenderToSVG writes the grid as SVG
func (g *GridRenderer) RenderToSVG(w io.Writer) error {
	width, height := g.size()
	s := svg.New(w, width, height, nil)
	g.render(s, width, height)
	if err := s.Close(); err != nil {
		return fmt.Errorf("closing SVG: %w", err)
	}
	return nil
}

// RenderToPNG writes the grid as PNG
func (g *GridRenderer) RenderToPNG(w io.Writer) error {
	width, height := g.size()
	rast := rasterizer.New(width, height, g.Resolution, canvas.DefaultColorSpace)
	g.render(rast, width, height)
	return png.Encode(w, rast)
}

// size returns the canvas extent: the visited boxes plus padding
func (g *GridRenderer) size() (float64, float64) {
	var maxX, maxY float64
	r := float64(g.Result.Radius)
	for _, row := range g.Result.Bubbles {
		for _, b := range row {
			maxX = max(maxX, float64(b.X)+r)
			maxY = max(maxY, float64(b.Y)+r)
		}
	}
	return maxX + g.Padding, maxY + g.Padding
}

func (g *GridRenderer) render(renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// canvas has its origin at the bottom left
	toCanvas := func(p Point) (float64, float64) {
		return float64(p.X), height - float64(p.Y)
	}

	rowStyle := canvas.DefaultStyle
	rowStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	rowStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	rowStyle.StrokeWidth = 1.0
	rowStyle.Dashes = []float64{4.0, 4.0}

	for _, row := range g.Result.Bubbles {
		if len(row) < 2 {
			continue
		}
		p := &canvas.Path{}
		for i, b := range row {
			x, y := toCanvas(b.Point)
			if i == 0 {
				p.MoveTo(x, y)
			} else {
				p.LineTo(x, y)
			}
		}
		renderer.RenderPath(p, rowStyle, canvas.Identity)
	}

	questions := g.Result.Answers.Questions()
	radius := float64(g.Result.Radius)
	for q, row := range g.Result.Bubbles {
		for i, b := range row {
			mark := MarkEmpty
			if q < len(questions) && i < len(questions[q]) {
				mark = questions[q][i]
			}

			style := canvas.DefaultStyle
			style.Stroke = canvas.Paint{Color: canvas.Black}
			style.StrokeWidth = 1.5
			switch mark {
			case MarkChecked:
				style.Fill = canvas.Paint{Color: g.Checked}
			case MarkCorrected:
				style.Fill = canvas.Paint{Color: g.Corrected}
			default:
				style.Fill = canvas.Paint{Color: canvas.Transparent}
			}

			x, y := toCanvas(b.Point)
			renderer.RenderPath(canvas.Circle(radius).Translate(x, y), style, canvas.Identity)
		}
	}
}

// nrgbaToRGBA premultiplies alpha; canvas expects premultiplied colours
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

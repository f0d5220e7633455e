// Package plot renders a waveform batch to an annotated raster image.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

const (
	ClassicTheme   Theme = "classic"
	GrayscaleTheme Theme = "grayscale"
	JungleTheme    Theme = "jungle"
	ThermalTheme   Theme = "thermal"
	MarineTheme    Theme = "marine"
)

// Theme selects the colour gradient of the trace
type Theme string

const (
	defaultWidth  = 1000
	defaultHeight = 400
	fontSize      = 12.0

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 80
	defaultBottomBorder = 60
	defaultRightBorder  = 30

	// vertical headroom kept above the highest peak, as a fraction of half height
	headroom = 0.1
)

var (
	axisColor = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}
	gridColor = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Top padding
	Left   int // Space for value scale
	Bottom int // Space for time scale and information bar
	Right  int // Right padding
}

// Config holds all configuration options for waveform rendering
type Config struct {
	Width    int     // Width of the plot area in pixels
	Height   int     // Height of the plot area in pixels
	FontSize float64 // Font size in points
	Theme    Theme   // Colour gradient of the trace

	BorderConfig BorderConfig
}

// Renderer draws waveform batches
type Renderer struct {
	config Config
	color  func(float64) color.Color
}

// NewRenderer creates a new renderer with the given configuration
func NewRenderer(config Config) (*Renderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.Width < 2 || config.Height < 2 {
		return nil, fmt.Errorf("plot area %dx%d is too small", config.Width, config.Height)
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &Renderer{
		config: config,
		color:  themeGradient(config.Theme),
	}, nil
}

// Render creates an image of the batch with scales and an information bar.
// params describe the oscillator the batch was computed from.
func (r *Renderer) Render(batch waveform.Batch, params waveform.Parameters) (*image.RGBA, error) {
	borders := r.config.BorderConfig
	fullWidth := r.config.Width + borders.Left + borders.Right
	fullHeight := r.config.Height + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		borders.Left,
		borders.Top,
		borders.Left+r.config.Width,
		borders.Top+r.config.Height,
	)

	scale := newValueScale(batch)

	r.renderGrid(img, area)

	ann, err := newAnnotator(annotatorConfig{FontSize: r.config.FontSize})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, area, batch, params, scale); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	r.renderTrace(img, area, batch, scale)

	return img, nil
}

func (r *Renderer) renderGrid(img *image.RGBA, area image.Rectangle) {
	for _, frac := range []float64{0.25, 0.75} {
		y := area.Min.Y + int(frac*float64(area.Dy()-1))
		drawLine(img, area.Min.X, y, area.Max.X-1, y, gridColor)
	}

	mid := area.Min.Y + (area.Dy()-1)/2
	drawLine(img, area.Min.X, mid, area.Max.X-1, mid, axisColor)
	drawLine(img, area.Min.X, area.Min.Y, area.Min.X, area.Max.Y-1, axisColor)
}

// renderTrace draws the samples as a polyline, breaking it at non-finite values.
func (r *Renderer) renderTrace(img *image.RGBA, area image.Rectangle, batch waveform.Batch, scale valueScale) {
	n := batch.Len()
	if n == 0 {
		return
	}

	t0, tN := batch.Times[0], batch.Times[n-1]
	span := tN - t0

	prevX, prevY, havePrev := 0, 0, false
	for i := 0; i < n; i++ {
		v := batch.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			havePrev = false
			continue
		}

		var xRatio float64
		if span > 0 {
			xRatio = (batch.Times[i] - t0) / span
		}
		x := area.Min.X + int(math.Round(xRatio*float64(area.Dx()-1)))
		y := scale.pixel(v, area)
		c := r.color(scale.normalize(v))

		if havePrev {
			drawLine(img, prevX, prevY, x, y, c)
		} else {
			img.Set(x, y, c)
		}
		prevX, prevY, havePrev = x, y, true
	}
}

// valueScale maps sample values symmetrically around zero.
type valueScale struct {
	peak float64
}

func newValueScale(batch waveform.Batch) valueScale {
	lo, hi, ok := batch.Bounds()
	if !ok {
		return valueScale{peak: 1}
	}

	peak := math.Max(math.Abs(lo), math.Abs(hi))
	if peak == 0 {
		peak = 1
	}
	return valueScale{peak: peak * (1 + headroom)}
}

func (s valueScale) pixel(v float64, area image.Rectangle) int {
	half := float64(area.Dy()-1) / 2
	y := float64(area.Min.Y) + half - (v/s.peak)*half
	return int(math.Round(y))
}

// normalize maps v from [-peak, peak] into [0, 1]
func (s valueScale) normalize(v float64) float64 {
	return math.Max(0, math.Min(1, (v/s.peak+1)/2))
}

// themeGradient returns the trace colour for a normalized value in [0, 1]
func themeGradient(theme Theme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme: // Light gray -> Black
		return func(v float64) color.Color {
			g := 0.6 * (1 - v)
			return colorful.Color{R: g, G: g, B: g}
		}

	case JungleTheme: // Dark Green -> Yellow
		return func(v float64) color.Color {
			return colorful.Hsv(120-(v*60), 1.0, 0.4+(math.Pow(v, 0.6)*0.4))
		}

	case ThermalTheme: // Blue -> Red
		cold, hot := colorful.Hsv(240, 1, 0.7), colorful.Hsv(0, 1, 0.9)
		return func(v float64) color.Color {
			return cold.BlendHcl(hot, v).Clamped()
		}

	case MarineTheme: // Deep Blue -> Cyan
		return func(v float64) color.Color {
			return colorful.Hsv(240-(v*60), 1.0-(v*0.5), 0.5+(v*0.3))
		}

	default: // Blue -> Red
		return func(v float64) color.Color {
			return colorful.Hsv(240-(v*240), 0.9+(v*0.1), 0.8)
		}
	}
}

// drawLine draws a line using Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package plot

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func countInk(img *image.RGBA, area image.Rectangle) int {
	n := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if !isWhite(img.At(x, y)) {
				n++
			}
		}
	}
	return n
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer(Config{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	params := waveform.Parameters{Frequency: 3, Amplitude: 2, Phase: 0}
	img, err := r.Render(waveform.New(params.Amplitude, params.Phase).Batch(params.Frequency), params)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	wantW := 400 + defaultLeftBorder + defaultRightBorder
	wantH := 200 + defaultTopBorder + defaultBottomBorder
	if got := img.Bounds().Size(); got.X != wantW || got.Y != wantH {
		t.Fatalf("image size = %v, want %dx%d", got, wantW, wantH)
	}

	if !isWhite(img.At(0, 0)) {
		t.Error("expected white background in the corner")
	}

	// a sine with peaks at ±2 must reach both the upper and lower quarter of the plot
	upper := image.Rect(defaultLeftBorder+1, defaultTopBorder, defaultLeftBorder+400, defaultTopBorder+40)
	lower := image.Rect(defaultLeftBorder+1, defaultTopBorder+160, defaultLeftBorder+400, defaultTopBorder+200)
	if countInk(img, upper) == 0 || countInk(img, lower) == 0 {
		t.Error("expected the trace to reach both peaks")
	}

	// annotations go into the borders
	if countInk(img, image.Rect(0, defaultTopBorder+200, wantW, wantH)) == 0 {
		t.Error("expected time scale and info bar below the plot")
	}
	if countInk(img, image.Rect(0, defaultTopBorder, defaultLeftBorder-tickLength, defaultTopBorder+200)) == 0 {
		t.Error("expected value scale labels left of the plot")
	}
}

func TestRenderer_RenderDegenerateBatches(t *testing.T) {
	r, err := NewRenderer(Config{Width: 100, Height: 50, Theme: ThermalTheme})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	nan := waveform.New(math.NaN(), 0).Batch(1)
	tests := map[string]waveform.Batch{
		"flat":    waveform.New(1, 0).Batch(0),
		"zero":    waveform.New(0, 0).Batch(5),
		"nan":     nan,
		"empty":   {},
		"partial": {Times: []float64{0, 1, 2}, Values: []float64{1, math.Inf(1), -1}},
	}

	for name, batch := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := r.Render(batch, waveform.Parameters{Frequency: batch.Frequency}); err != nil {
				t.Errorf("Render() error = %v", err)
			}
		})
	}
}

func TestNewRenderer_TooSmall(t *testing.T) {
	if _, err := NewRenderer(Config{Width: 1, Height: 10}); err == nil {
		t.Error("expected an error for a 1 pixel wide plot")
	}
}

func TestThemeGradient(t *testing.T) {
	for _, theme := range []Theme{ClassicTheme, GrayscaleTheme, JungleTheme, ThermalTheme, MarineTheme, "unknown"} {
		gradient := themeGradient(theme)

		low, high := gradient(0), gradient(1)
		if low == nil || high == nil {
			t.Fatalf("%s: nil colour", theme)
		}

		lr, lg, lb, _ := low.RGBA()
		hr, hg, hb, _ := high.RGBA()
		if lr == hr && lg == hg && lb == hb {
			t.Errorf("%s: gradient ends are the same colour", theme)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:    "0 s",
		0.5:  "500 ms",
		2:    "2 s",
		0.01: "10 ms",
	}

	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

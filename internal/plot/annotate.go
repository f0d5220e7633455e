package plot

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/roman-kulish/sniper-scope/internal/waveform"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi     float64 = 72
	spacing float64 = 1.2

	timeTicks  = 10
	tickLength = 5
)

var textColor = image.NewUniform(color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff})

type annotatorConfig struct {
	FontSize float64
}

type annotator struct {
	config  annotatorConfig
	context *freetype.Context
	face    font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(config.FontSize)
	context.SetSrc(textColor)
	context.SetHinting(font.HintingFull)

	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    config.FontSize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})

	return &annotator{
		config:  config,
		context: context,
		face:    face,
	}, nil
}

func (a *annotator) Close() error {
	return a.face.Close()
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, batch waveform.Batch, params waveform.Parameters, scale valueScale) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func() error
	}{
		{"drawing time scale", func() error { return a.drawTimeScale(img, area, batch) }},
		{"drawing value scale", func() error { return a.drawValueScale(img, area, scale) }},
		{"drawing info", func() error { return a.drawInfo(img, batch, params) }},
	}
	for _, op := range ops {
		if err := op.fn(); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, batch waveform.Batch) error {
	n := batch.Len()
	if n == 0 {
		return nil
	}

	t0, tN := batch.Times[0], batch.Times[n-1]
	lineHeight := a.context.PointToFixed(a.config.FontSize).Ceil()

	for si := 0; si <= timeTicks; si++ {
		ratio := float64(si) / timeTicks
		px := area.Min.X + int(ratio*float64(area.Dx()-1))

		// draw a tick below the plot
		drawLine(img, px, area.Max.Y, px, area.Max.Y+tickLength, axisColor)

		// centre the label on the tick
		str := formatSeconds(t0 + ratio*(tN-t0))
		width := font.MeasureString(a.face, str).Ceil()
		pt := freetype.Pt(px-width/2, area.Max.Y+tickLength+lineHeight)
		if _, err := a.context.DrawString(str, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *annotator) drawValueScale(img *image.RGBA, area image.Rectangle, scale valueScale) error {
	lineHeight := a.context.PointToFixed(a.config.FontSize).Ceil()

	// peak without the headroom, so labels show the real amplitude
	peak := scale.peak / (1 + headroom)

	for _, v := range []float64{peak, peak / 2, 0, -peak / 2, -peak} {
		py := scale.pixel(v, area)

		drawLine(img, area.Min.X-tickLength, py, area.Min.X, py, axisColor)

		str := strconv.FormatFloat(v, 'g', 3, 64)
		width := font.MeasureString(a.face, str).Ceil()
		pt := freetype.Pt(area.Min.X-tickLength-3-width, py+lineHeight/3)
		if _, err := a.context.DrawString(str, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *annotator) drawInfo(img *image.RGBA, batch waveform.Batch, params waveform.Parameters) error {
	fract, suffix := humanize.ComputeSI(params.Frequency)

	info := fmt.Sprintf("Frequency: %0.2f %sHz   Amplitude: %s   Phase: %0.3f rad   Samples: %s",
		fract, suffix,
		strconv.FormatFloat(params.Amplitude, 'g', 4, 64),
		params.Phase,
		humanize.Comma(int64(batch.Len())),
	)

	// bottom-left corner, one line above the edge
	imgSize := img.Bounds().Size()
	pt := freetype.Pt(3, imgSize.Y-a.context.PointToFixed(a.config.FontSize*(spacing-1)).Ceil()-3)
	_, err := a.context.DrawString(info, pt)
	return err
}

// formatSeconds renders a time offset with an SI prefix, e.g. "250 ms"
func formatSeconds(s float64) string {
	if s == 0 {
		return "0 s"
	}
	fract, suffix := humanize.ComputeSI(s)
	return fmt.Sprintf("%.0f %ss", fract, suffix)
}

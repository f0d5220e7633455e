package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/roman-kulish/sniper-scope/internal/plot"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath     string
	ScopeID    string
	Frequency  *float64 // overrides the stored frequency when set
	OutputFile string
	Format     ImageFormat
	Theme      plot.Theme
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validThemes = map[plot.Theme]struct{}{
	plot.ClassicTheme:   {},
	plot.GrayscaleTheme: {},
	plot.JungleTheme:    {},
	plot.ThermalTheme:   {},
	plot.MarineTheme:    {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Theme:  plot.ClassicTheme,
	}
}

// NewConfigFromArgs parses command line arguments, without the program name
func NewConfigFromArgs(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()
	fs := flag.NewFlagSet("scopeplot", flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme string
	var frequency float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&c.ScopeID, "s", "", "Scope ID")
	fs.Float64Var(&frequency, "freq", 0, "Render at this frequency instead of the stored one (Hz)")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(plot.ClassicTheme), "Trace colour theme. [classic, grayscale, jungle, thermal, marine]")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	theme = strings.ToLower(theme)

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "freq" {
			c.Frequency = &frequency
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.ScopeID == "" {
		err = errors.New("scope id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok = validThemes[plot.Theme(theme)]; !ok {
		err = fmt.Errorf("invalid theme: %s", theme)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = plot.Theme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/roman-kulish/sniper-scope/internal/plot"
	"github.com/roman-kulish/sniper-scope/internal/scope"
	"github.com/roman-kulish/sniper-scope/internal/storage"
	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return renderScope(ctx, store, config, logger)
}

func renderScope(ctx context.Context, lookup scope.Lookup, config *Config, logger *slog.Logger) (err error) {
	sc, err := lookup.Scope(ctx, config.ScopeID)
	if err != nil {
		return fmt.Errorf("looking up scope: %w", err)
	}

	params := sc.Parameters()
	if config.Frequency != nil {
		params.Frequency = *config.Frequency
	}

	batch := waveform.New(params.Amplitude, params.Phase).Batch(params.Frequency)

	renderer, err := plot.NewRenderer(plot.Config{Theme: config.Theme})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering scope",
		slog.String("scopeID", sc.ID),
		slog.Group("signal",
			slog.Float64("frequency", params.Frequency),
			slog.Float64("amplitude", params.Amplitude),
			slog.Float64("phase", params.Phase),
		),
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
		))

	img, err := renderer.Render(batch, params)
	if err != nil {
		return fmt.Errorf("rendering scope: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/roman-kulish/sniper-scope/internal/server"
	"github.com/roman-kulish/sniper-scope/internal/storage"
	"github.com/roman-kulish/sniper-scope/internal/stream"
	"golang.org/x/sync/errgroup"
)

// Run serves the scope API until ctx is cancelled, then drains open sessions.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := storage.NewSqliteStore(config.Storage.DatabasePath)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initialising storage: %w", err)
	}

	streamOpts := []func(*stream.Handler){
		stream.WithHandlerLogger(logger),
		stream.WithOriginPatterns(server.OriginPatterns(config.Server.AllowedOrigins)...),
		stream.WithInitialBatches(config.Stream.InitialBatch),
	}
	if config.Stream.ReadLimit > 0 {
		streamOpts = append(streamOpts, stream.WithReadLimit(config.Stream.ReadLimit))
	}
	streams := stream.NewHandler(store, streamOpts...)

	api := server.New(store, streams,
		server.WithLogger(logger),
		server.WithAllowedOrigins(config.Server.AllowedOrigins...))

	httpServer := &http.Server{
		Addr:    config.Server.Address,
		Handler: api.Handler(),

		// sessions inherit ctx, so cancelling it closes them with "going away"
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening",
			slog.String("address", config.Server.Address),
			slog.String("database", config.Storage.DatabasePath))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down", slog.Int64("activeSessions", streams.Active()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()

		// hijacked WebSocket connections are not tracked by Shutdown
		err := httpServer.Shutdown(shutdownCtx)
		streams.Wait()

		if err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

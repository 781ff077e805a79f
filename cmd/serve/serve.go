// Package serve implements the HTTP server subcommand.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/insectos/insectos-go/internal/api"
	"github.com/insectos/insectos-go/internal/conf"
	"github.com/insectos/insectos-go/internal/datastore"
	"github.com/insectos/insectos-go/internal/inaturalist"
	"github.com/insectos/insectos-go/internal/logging"
	"github.com/insectos/insectos-go/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	log := logging.ForService("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store := datastore.New(settings, metrics.Datastore)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close datastore", "error", err)
		}
	}()

	inat := inaturalist.NewClient(inaturalist.Config{
		BaseURL:  settings.Upstream.BaseURL,
		Timeout:  settings.Upstream.Timeout,
		CacheTTL: settings.Upstream.CacheTTL,
		Locale:   settings.Upstream.Locale,
		PlaceID:  settings.Upstream.PlaceID,
		TaxonID:  settings.Upstream.TaxonID,
	}, metrics.Upstream)
	defer inat.Close()

	e := echo.New()
	e.HideBanner = true

	controller, err := api.New(e, store, settings, inat, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize API controller: %w", err)
	}
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		log.Info("Starting HTTP server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

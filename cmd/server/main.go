package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vrijeme-widget/internal/api"
	"vrijeme-widget/internal/config"
	"vrijeme-widget/internal/feed"
	"vrijeme-widget/internal/geo"
	"vrijeme-widget/internal/geoloc"
	"vrijeme-widget/internal/mapview"
	"vrijeme-widget/internal/scheduler"
	"vrijeme-widget/internal/selection"
	"vrijeme-widget/internal/services"
	"vrijeme-widget/pkg/client"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting weather widget service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Preference store: selection, data source and unit choices
	prefs := selection.NewMemoryStore()

	// Feed fetcher with retry + circuit breaker
	fetcher := client.NewFeedFetcher("feeds", client.Config{
		Timeout:        cfg.Feeds.FetchTimeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}, logger)

	// Feed sources from the static configuration table
	var sources []services.Source
	for _, spec := range cfg.Sources() {
		var parser feed.Parser
		switch spec.ID {
		case "dhmz":
			parser = feed.NewDHMZParser(logger)
		case "pljusak":
			parser = feed.NewPljusakParser(logger)
		default:
			logger.Fatal("No parser for configured source", zap.String("source", spec.ID))
		}
		sources = append(sources, services.Source{
			ID:                  spec.ID,
			URL:                 spec.URL,
			Parser:              parser,
			NameSeparator:       spec.NameSeparator,
			CityPrefixWhitelist: spec.CityPrefixWhitelist,
			DisplayLabel:        spec.DisplayLabel,
		})
	}

	refresher, err := services.NewRefresher(fetcher, sources, cfg.Feeds.DefaultSource, prefs, logger)
	if err != nil {
		logger.Fatal("Failed to initialize refresher", zap.Error(err))
	}

	// Geolocation: the browser posts position fixes to the API, the push
	// provider adapts them to the gateway's single-request model
	push := geoloc.NewPushProvider()
	gateway := geoloc.NewGateway(push, logger)

	resolver := selection.NewResolver(prefs, logger)

	// Map plane over Croatia; the API serves base station positions from it
	plane := geo.NewPlane(geo.Croatia, cfg.Map.ViewWidth, cfg.Map.ViewHeight, cfg.Map.WidthCorrection)
	viewport := mapview.NewViewport(plane, cfg.Map.ViewWidth, cfg.Map.ViewHeight)

	// Initialize scheduler
	refreshScheduler := scheduler.NewScheduler(refresher, cfg.Refresh.Interval, cfg.Feeds.FetchTimeout, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(refresher, resolver, gateway, push, refreshScheduler, prefs, viewport, logger)
	api.SetupRoutes(app, handler, logger)

	// Start scheduler
	if err := refreshScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	refreshScheduler.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}

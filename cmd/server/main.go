package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"donut-map/internal/demo"
	"donut-map/internal/donut"
	"donut-map/internal/markers"
	"donut-map/internal/platform/config"
	"donut-map/internal/platform/logger"
	"donut-map/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Icon.Validate(); err != nil {
		log.Error("invalid icon config", "error", err)
		os.Exit(1)
	}

	colors := donut.DefaultColors
	if cfg.ColorOverrides != "" {
		overrides, err := donut.ParseColorOverrides(cfg.ColorOverrides)
		if err == nil {
			colors, err = colors.WithOverrides(overrides)
		}
		if err != nil {
			log.Error("invalid DONUT_COLORS", "error", err)
			os.Exit(1)
		}
	}

	repo := markers.NewInMemoryRepository()
	svc := markers.NewService(repo, cfg.Icon, colors, cfg.Map)
	met := metrics.New()
	h := markers.NewHandler(svc, log, met)

	if cfg.DemoMarkers > 0 {
		seed := cfg.DemoSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		if err := seedDemo(svc, markers.MapID(cfg.DemoMapID), demo.NewRandomSource(cfg.Map.Center, seed), cfg.DemoMarkers); err != nil {
			log.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
		met.AddIconsRendered("place", cfg.DemoMarkers)
		log.Info("demo map seeded",
			"map_id", cfg.DemoMapID,
			"markers", cfg.DemoMarkers,
			"seed", seed,
		)
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveMarkers(svc.ActiveMarkerCount())
			met.SetZoomSubscriptions(svc.SubscriptionCount())
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"base_radius_px", cfg.Icon.BaseRadiusPx,
		"reference_zoom", cfg.Icon.ReferenceZoom,
		"log_level", cfg.LogLevel,
		slog.Bool("tile_key_set", cfg.Map.APIKey != ""),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// seedDemo creates mapID and fills it with n markers from src.
func seedDemo(svc *markers.Service, mapID markers.MapID, src demo.Source, n int) error {
	if _, err := svc.CreateMap(mapID, markers.CreateMapRequest{}); err != nil {
		return err
	}
	for _, s := range src.Generate(n) {
		if _, err := svc.AddMarker(mapID, markers.MarkerInput{
			Position: markers.LatLngFromPoint(s.Position),
			Stats:    s.Stats,
		}); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docbox-health/docbox/internal/adjudication"
	"github.com/docbox-health/docbox/internal/eventlog"
	"github.com/docbox-health/docbox/internal/intake"
	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/auth"
	"github.com/docbox-health/docbox/internal/shared/config"
	"github.com/docbox-health/docbox/internal/shared/database"
	"github.com/docbox-health/docbox/internal/shared/events"
	"github.com/docbox-health/docbox/internal/shared/metrics"
	secmiddleware "github.com/docbox-health/docbox/internal/shared/middleware"
	"github.com/docbox-health/docbox/internal/sim"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Engine *sim.Engine
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running without persistence mirror...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus (optional - skip if not available)
	var bus events.EventBus = events.NoopBus{}
	realBus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: Event store not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = realBus
		bus = realBus
		defer realBus.Close()
		fmt.Println("Event bus initialized")
	}

	// Patient store with persistence mirror
	store := patient.NewStore(cfg.Sim.BedCount)
	if app.DB != nil {
		store.SetSyncer(patient.NewRepository(app.DB))
	}

	// Arrival source: AI service with fixture fallback
	var source intake.Source = intake.NewFixtureSource()
	if cfg.AI.Enabled {
		source = intake.NewFallbackSource(intake.NewAISource(cfg.AI), source)
		fmt.Printf("AI patient source enabled (service: %s)\n", cfg.AI.URL)
	}

	// Simulation engine
	activityLog := eventlog.NewLog(bus)
	app.Engine = sim.NewEngine(store, activityLog, source, cfg.Sim, nil)

	// Rejection adjudicator: AI service with local fallback
	var adjudicator adjudication.Adjudicator = adjudication.NewFallback(
		int64(cfg.Sim.DischargeDelayMin), int64(cfg.Sim.DischargeDelayMax), nil)
	if cfg.AI.Enabled {
		adjudicator = adjudication.NewWithFallback(adjudication.NewClient(cfg.AI), adjudicator)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
			r.Use(secmiddleware.NewIPRateLimiter(10, 20).Middleware)
		}

		r.Mount("/sim", sim.NewHandler(app.Engine).Routes())
		r.Mount("/patients", patient.NewHandler(store, app.Engine).Routes())
		r.Mount("/log", eventlog.NewHandler(activityLog).Routes())
		r.Mount("/reject", adjudication.NewHandler(adjudicator, app.Engine).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		app.Engine.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("DocBox ER Flow Simulator")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Beds:         %d\n", cfg.Sim.BedCount)
	fmt.Printf("Default mode: %s\n", cfg.Sim.DefaultMode)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "DocBox ER Flow Simulator",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(checks)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

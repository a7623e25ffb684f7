package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/pulsar-neuron/gate/internal/agent"
	"github.com/pulsar-neuron/gate/internal/config"
	"github.com/pulsar-neuron/gate/internal/contextpack"
	"github.com/pulsar-neuron/gate/internal/database"
	"github.com/pulsar-neuron/gate/internal/feedstore"
	"github.com/pulsar-neuron/gate/internal/freshness"
	"github.com/pulsar-neuron/gate/internal/model"
	"github.com/pulsar-neuron/gate/internal/rails"
	"github.com/pulsar-neuron/gate/internal/scheduler"
	"github.com/pulsar-neuron/gate/internal/session"
	"github.com/pulsar-neuron/gate/internal/sink"
	"github.com/pulsar-neuron/gate/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gated.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gated",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"symbols", cfg.Symbols,
		"agent_mode", cfg.Agent.Mode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	store := feedstore.NewPostgres(pool, logger)

	cal, err := session.NewCalendar(cfg.Session)
	if err != nil {
		logger.Error("invalid session calendar", "error", err)
		os.Exit(1)
	}

	budgets := freshness.Budgets{
		Bars:         cfg.Freshness.Bars,
		OpenInterest: cfg.Freshness.OpenInterest,
		OptionChain:  cfg.Freshness.OptionChain,
		BreadthVIX:   cfg.Freshness.BreadthVIX,
	}

	assembler := contextpack.New(
		store,
		budgets,
		nil,
		model.Timeframe(cfg.Scheduler.Timeframe),
		cal.Loc,
		logger,
	)

	verifier := rails.New(rails.Config{
		MinRiskReward:  cfg.Rails.MinRiskReward,
		MaxPositions:   cfg.Rails.MaxPositions,
		WallDistanceEM: cfg.Rails.WallDistanceEM,
	}, cal)

	positions := rails.NewMemoryBook()

	proposer := buildAgent(cfg.Agent, logger)

	hub := sink.NewHub(cfg.Publish.WriteTimeout, logger)
	defer hub.Close()

	decisionSink := sink.New(store, hub, cal.Loc, logger)

	sched := scheduler.New(cfg.Scheduler, cfg.Symbols, cal, scheduler.Deps{
		Store:     store,
		Assembler: assembler,
		Agent:     proposer,
		Verifier:  verifier,
		Positions: positions,
		Sink:      decisionSink,
		Logger:    logger,
	})

	// Health + publish server
	healthPort := 9090
	if cfg.Metrics.Port > 0 {
		healthPort = cfg.Metrics.Port
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: createHandler(cfg, pool, hub, sched, logger),
	}

	go func() {
		logger.Info("starting health server", "port", healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("gated running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", healthPort),
		"decisions_url", fmt.Sprintf("ws://localhost:%d%s", healthPort, cfg.Publish.Path),
	)

	// Run blocks until shutdown
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler stopped", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("gated stopped")
}

// buildAgent selects the proposal agent from config.
func buildAgent(cfg config.AgentConfig, logger *slog.Logger) agent.Agent {
	if cfg.Mode == "remote" {
		return agent.NewRemoteAgent(
			cfg.URL,
			cfg.APIKey,
			agent.WithLogger(logger),
			agent.WithTimeout(cfg.Timeout),
			agent.WithRetries(cfg.MaxRetries, time.Second),
			agent.WithRatePerMinute(cfg.RatePerMin),
		)
	}
	return agent.NewRuleAgent(agent.DefaultRuleConfig())
}

// createHandler wires health, decision publishing and the kill switch.
func createHandler(cfg *config.GateConfig, pool *pgxpool.Pool, hub *sink.Hub, sched *scheduler.Scheduler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		health.Components["subscribers"] = hub.Subscribers()
		health.Components["halted"] = sched.Halted()
		if sched.Halted() {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(cfg.Publish.Path, hub.Handler())

	started := time.Now()
	mux.HandleFunc(cfg.Metrics.Path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"instance_id":    cfg.Instance.ID,
			"uptime_seconds": int(time.Since(started).Seconds()),
			"subscribers":    hub.Subscribers(),
			"halted":         sched.Halted(),
			"symbols":        cfg.Symbols,
		})
	})

	mux.HandleFunc("/admin/halt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched.Halt()
		logger.Warn("halt requested", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/admin/resume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sched.Resume()
		logger.Info("resume requested", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

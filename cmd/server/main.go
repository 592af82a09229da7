package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lexiqai/narrator/internal/cache"
	"github.com/lexiqai/narrator/internal/codec"
	"github.com/lexiqai/narrator/internal/config"
	"github.com/lexiqai/narrator/internal/observability"
	"github.com/lexiqai/narrator/internal/pipeline"
	"github.com/lexiqai/narrator/internal/server"
	"github.com/lexiqai/narrator/internal/tts"
)

const healthPollInterval = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_backend", cfg.SpeechBackend).
		Str("codec", cfg.Codec).
		Str("output_format", cfg.OutputFormat).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Narrator service starting")

	synth, err := tts.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech backend")
	}

	audioCodec, err := codec.New(cfg.Codec, cfg.FFmpegCommand, cfg.AudioFormat(), cfg.MP3BitrateKbps)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create codec")
	}

	engine, err := pipeline.NewEngine(synth, audioCodec, pipeline.Options{
		Format:          cfg.AudioFormat(),
		UnitTimeout:     cfg.SpeechTimeoutDuration(),
		DefaultLanguage: cfg.SpeechLanguage,
		OutputFormat:    codec.Format(cfg.OutputFormat),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pipeline engine")
	}

	api := server.New(engine, cache.New(cfg.ResultCacheSize, cfg.ResultCacheTTLDuration()), server.Options{
		PauseMinMS:      cfg.PauseMinMS,
		PauseMaxMS:      cfg.PauseMaxMS,
		PauseDefaultMS:  cfg.PauseDefaultMS,
		MaxInputBytes:   cfg.MaxInputBytes,
		DefaultLanguage: cfg.SpeechLanguage,
		DefaultFormat:   engine.OutputFormat(),
	}, logger)

	// Readiness checks for the backends that live outside the process
	checks := map[string]observability.HealthCheckFunc{
		"speech": synth.Check,
	}
	if c, ok := audioCodec.(codec.Checker); ok {
		checks["codec"] = c.Check
	}

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Runs are synchronous, so writes must outlast the slowest run
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/v1/audio", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var grpcServer *grpc.Server
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
		if err != nil {
			logger.Fatal().Err(err).Str("port", cfg.GRPCHealthPort).Msg("Failed to listen for gRPC health")
		}

		grpcServer = grpc.NewServer()
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		g.Go(func() error {
			logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
			return grpcServer.Serve(lis)
		})

		g.Go(func() error {
			pollHealth(gctx, healthServer, checks)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}

	logger.Info().Msg("Server exited gracefully")
}

// pollHealth mirrors the readiness checks into the gRPC health service
func pollHealth(ctx context.Context, hs *health.Server, checks map[string]observability.HealthCheckFunc) {
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if _, ok := observability.CheckDependencies(checkCtx, checks); !ok {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	}

	update()
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}

package main

import (
	"chat-relay/auth"
	pb "chat-relay/infrastructure/grpc/realtimepb"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves gRPC and websocket clients and shuts them down in order.
// Deferred cleanups run before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s?prefix=msg:", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	// 3. Core
	store := repositories.NewStore(db, logger, config.HistoryPageSize)
	authService := services.NewAuthService(store, auth.NewTokenIssuer(config.JwtSecret, config.AuthTokenDuration))
	historyService := services.NewHistoryService(store)
	registry := runtime.NewRegistry()
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, sup, registry, store, authService, config.MaxContentLength)
	orchestrator.Add(
		workers.NewHeartbeatWorker(logger, registry, config.HeartbeatInterval),
		workers.NewBacklogWorker(logger, registry, config.MetricInterval, config.LowCapacityThreshold),
	)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 3)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 5. gRPC Server
	listener, err := net.Listen("tcp", config.GrpcAddress())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.GrpcAddress(), err)
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(logger),
			auth.UnaryInterceptor(authService),
		),
		grpc.ChainStreamInterceptor(auth.StreamInterceptor(authService)),
	)
	pb.RegisterRealtimeServer(s, server.NewRealtimeServer(logger, orchestrator,
		config.ConnectionBufferSize, config.DeliveryTimeout))

	go func() {
		logger.Info("Starting gRPC server", "address", config.GrpcAddress(), "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. HTTP Server (websocket + API)
	handler := ws.NewHandler(logger, orchestrator, config.ConnectionBufferSize, config.DeliveryTimeout)
	httpServer := &http.Server{
		Addr:              config.HttpAddress(),
		Handler:           ws.NewRouter(logger, handler, authService, historyService),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", config.HttpAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown: refuse new sessions, announce everyone offline, then close the transports.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout)
	defer cancel()
	orchestrator.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	// Open streams never end by themselves, give them until the deadline.
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		s.Stop()
	}
	orchestrator.Stop()
	<-workersDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLogger(repositories.NewBadgerLogger(logger))
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG).WithBypassLockGuard(true)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// RecordMapper renders the CBOR records of the store in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = repositories.Describe(key, val)
	return row
}

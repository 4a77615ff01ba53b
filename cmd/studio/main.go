package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/adapterinfo"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/config"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/mockdata"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/server"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// lazyTTSServer wraps a TextToSpeechServiceServer and allows deferred initialization.
// It returns Unavailable errors until the underlying server is set via setServer.
type lazyTTSServer struct {
	napv1.UnimplementedTextToSpeechServiceServer
	server atomic.Pointer[napv1.TextToSpeechServiceServer]
}

func (l *lazyTTSServer) setServer(srv napv1.TextToSpeechServiceServer) {
	l.server.Store(&srv)
}

func (l *lazyTTSServer) StreamSynthesis(req *napv1.StreamSynthesisRequest, stream napv1.TextToSpeechService_StreamSynthesisServer) error {
	srv := l.server.Load()
	if srv == nil {
		return status.Error(codes.Unavailable, "TTS service is initializing, please retry in a moment")
	}
	return (*srv).StreamSynthesis(req, stream)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting studio",
		"app", adapterinfo.Info.Name,
		"app_slug", adapterinfo.Info.Slug,
		"app_version", adapterinfo.Version(),
		"nap_slot", adapterinfo.Info.Slot,
		"nap_transport", adapterinfo.Info.Transport,
		"listen_addr", cfg.ListenAddr,
		"grpc_listen_addr", cfg.GRPCListenAddr,
		"environment", cfg.Environment,
		"serves_assets", cfg.ServesAssets(),
		"default_key_usable", credential.Usable(cfg.APIKey),
	)
	if !credential.Usable(cfg.APIKey) {
		logger.Info("no usable default API key; requests without their own key get mock data")
	}

	recorder := telemetry.NewRecorder(logger)

	// STEP 1: Bind ports before building the pipeline so readiness checks succeed early.
	httpLis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind http listener", "error", err)
		os.Exit(1)
	}
	defer httpLis.Close()
	logger.Info("http listener bound", "addr", httpLis.Addr().String())

	serverErr := make(chan error, 2)

	// STEP 2: Optional NAP gRPC surface, NOT_SERVING until the proxy is ready.
	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
		lazyService  *lazyTTSServer
	)
	serviceName := napv1.TextToSpeechService_ServiceDesc.ServiceName
	if cfg.GRPCListenAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCListenAddr)
		if err != nil {
			logger.Error("failed to bind grpc listener", "error", err)
			os.Exit(1)
		}
		defer grpcLis.Close()

		grpcServer = grpc.NewServer()
		healthServer = health.NewServer()
		healthgrpc.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

		lazyService = &lazyTTSServer{}
		napv1.RegisterTextToSpeechServiceServer(grpcServer, lazyService)

		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serverErr <- err
			}
		}()
		logger.Info("gRPC server started (NOT_SERVING while initializing)", "addr", grpcLis.Addr().String())
	}

	// STEP 3: Upstream client and mock sample source.
	upstream := elevenlabs.NewClient(cfg.BaseURL, cfg.ListTimeout)

	var sample mockdata.SampleSource
	if cfg.UseStubSample {
		sample = mockdata.NewStaticSample(logger)
		logger.Info("using STATIC mock sample; mock audio is generated silence, NOT fetched")
	} else {
		sample = mockdata.NewRemoteSample(cfg.SampleURL, 0)
	}

	mockDelay := cfg.MockDelay
	if mockDelay == 0 {
		mockDelay = -1
	}
	service := proxy.New(upstream, sample, proxy.Options{
		DefaultKey: cfg.APIKey,
		MockDelay:  mockDelay,
	}, logger, recorder)

	// STEP 4: HTTP surface.
	httpServer := &http.Server{
		Handler:           server.NewRouter(cfg, service, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// STEP 5: Activate the NAP service now that the proxy is ready.
	if lazyService != nil {
		lazyService.setServer(server.New(cfg, logger, service))
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_SERVING)
	}
	logger.Info("studio ready to serve requests")

	// STEP 6: Wait for a signal or a server failure.
	exitCode := 0
	select {
	case err := <-serverErr:
		logger.Error("server terminated with error", "error", err)
		exitCode = 1
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdown(logger, httpServer, grpcServer, healthServer, serviceName)
	logger.Info("studio stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// shutdown stops both surfaces, forcing them closed after shutdownTimeout.
func shutdown(logger *slog.Logger, httpServer *http.Server, grpcServer *grpc.Server, healthServer *health.Server, serviceName string) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if healthServer != nil {
		healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http graceful shutdown timed out, forcing close", "error", err)
		_ = httpServer.Close()
	}

	if grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("graceful stop timed out, forcing stop")
		grpcServer.Stop()
	}
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

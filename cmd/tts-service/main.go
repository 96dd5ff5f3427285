// main package for the tts-service
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

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/stepfun-tts/internal/config"
	"github.com/book-expert/stepfun-tts/internal/metrics"
	"github.com/book-expert/stepfun-tts/internal/objectstore"
	"github.com/book-expert/stepfun-tts/internal/stepfun"
	"github.com/book-expert/stepfun-tts/internal/worker"
)

const (
	probeTimeout      = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	healthRoute       = "/health"
	metricsRoute      = "/metrics"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-service-bootstrap.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return fmt.Errorf("invalid configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires NATS, the audio bucket, the Stepfun client and the HTTP
// gateway, then runs the worker until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	recorder := metrics.New()

	store, err := objectstore.New(
		jetstreamContext,
		cfg.NATS.AudioObjectStoreBucket,
		objectstore.WithPublicURL(cfg.Gateway.PublicURL),
		objectstore.WithMetrics(recorder),
	)
	if err != nil {
		return fmt.Errorf("failed to open audio bucket: %w", err)
	}

	client := stepfun.NewClient(
		log,
		stepfun.WithBaseURL(cfg.Stepfun.BaseURL),
		stepfun.WithTimeout(cfg.Timeout()),
		stepfun.WithProductHeaders(cfg.Stepfun.UserAgent, cfg.Stepfun.SourceTag),
		stepfun.WithBlobStore(store),
		stepfun.WithMetrics(recorder),
	)

	// Fail fast on a bad key rather than on the first job.
	probeCtx, cancelProbe := context.WithTimeout(ctx, probeTimeout)
	apiKey, err := client.Authenticate(probeCtx, cfg.Stepfun.APIKey)

	cancelProbe()

	if err != nil {
		return fmt.Errorf("stepfun api key rejected: %w", err)
	}

	ttsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		store,
		client,
		apiKey,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	listener, err := bindGateway(cfg.Gateway.Addr)
	if err != nil {
		return err
	}

	server := newHTTPServer(cfg.Gateway.Addr, store, recorder, log)

	log.System("TTS-Service successfully initialized. Listening for jobs on subject: %s",
		cfg.NATS.TextProcessedSubject)

	err = runServices(ctx, server, listener, ttsWorker.Run, log)
	if err != nil {
		return err
	}

	log.System("TTS-Service stopped.")

	return nil
}

// bindGateway claims the gateway address before the worker starts, since
// every stored audio URL points at it.
func bindGateway(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind HTTP gateway on %s: %w", addr, err)
	}

	return listener, nil
}

// runServices serves the gateway on listener while runWorker runs. The
// worker is cancelled as soon as the gateway stops serving, and the gateway
// is shut down when the worker returns.
func runServices(
	ctx context.Context,
	server *http.Server,
	listener net.Listener,
	runWorker func(context.Context) error,
	log *logger.Logger,
) error {
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	serverErr := make(chan error, 1)

	go func() {
		defer close(serverErr)

		log.System("HTTP gateway listening on %s", listener.Addr())

		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("HTTP gateway stopped, stopping worker: %v", serveErr)
			serverErr <- serveErr

			cancelWorker()
		}
	}()

	workerErr := runWorker(workerCtx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		log.Warn("HTTP gateway shutdown: %v", shutdownErr)
	}

	listenErr := <-serverErr
	if listenErr != nil {
		return fmt.Errorf("http gateway failed: %w", listenErr)
	}

	if workerErr != nil {
		return fmt.Errorf("worker stopped: %w", workerErr)
	}

	return nil
}

func newHTTPServer(
	addr string,
	store *objectstore.NatsObjectStore,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *http.Server {
	mux := http.NewServeMux()
	objectstore.NewGateway(store, log).Register(mux)
	mux.Handle(metricsRoute, recorder.Handler())
	mux.HandleFunc(healthRoute, func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

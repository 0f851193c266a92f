package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observatorio-agua/notifications/pkg/models"
	"github.com/observatorio-agua/notifications/pkg/rabbit"
)

var version = "dev"

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

var (
	notificationsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_notifications_received_total",
		Help: "Total number of notifications decoded and displayed.",
	})
	alertsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_alerts_flagged_total",
		Help: "Total number of measurements received with an exceeded threshold.",
	})
	decodeFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_decode_failure_total",
		Help: "Total number of payloads that failed to decode and were discarded.",
	})
	handlerFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_handler_failure_total",
		Help: "Total number of notifications dropped because display failed.",
	})
)

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		logger.Warn("invalid env var, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

// makeHandler wires the notifier and metrics into the per-message contract:
// the consumer acks only after this returns nil.
func makeHandler(notifier *ConsoleNotifier) rabbit.Handler {
	return func(env models.Envelope) error {
		if err := notifier.Display(env); err != nil {
			handlerFailure.Inc()
			return err
		}
		notificationsReceived.Inc()
		alertsFlagged.Add(float64(env.Data.AlertCount()))
		return nil
	}
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func main() {
	host := flag.String("host", getEnv("AMQP_HOST", "localhost"), "RabbitMQ host")
	port := flag.Int("port", getEnvInt("AMQP_PORT", 5672), "RabbitMQ port")
	user := flag.String("user", getEnv("AMQP_USER", "guest"), "RabbitMQ user")
	password := flag.String("password", getEnv("AMQP_PASSWORD", "guest"), "RabbitMQ password")
	healthcheck := flag.Bool("healthcheck", false, "Probe the metrics server and exit 0/1.")
	flag.Parse()

	metricsAddr := getEnv("METRICS_ADDR", ":9091")

	if *healthcheck {
		conn, err := net.DialTimeout("tcp", "localhost"+metricsAddr, 3*time.Second)
		if err != nil {
			os.Exit(1)
		}
		conn.Close()
		os.Exit(0)
	}

	cfg := rabbit.Config{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
	}

	logger.Info("starting admin consumer",
		"version", version,
		"endpoint", cfg.Redacted(),
		"metrics_addr", metricsAddr,
	)

	metricsSrv := startMetricsServer(metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wrong credentials or an unreachable broker end here, before any
	// receive loop starts (clean exit, no uncaught fault).
	conn, err := rabbit.Dial(cfg, logger)
	if err != nil {
		logger.Error("cannot reach broker, shutting down", "error", err)
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		os.Exit(1)
	}
	defer conn.Close()

	notifier := NewConsoleNotifier(os.Stdout)
	consumer := rabbit.NewConsumer(conn, makeHandler(notifier))
	consumer.OnDecodeError = func(error) { decodeFailure.Inc() }

	if err := consumer.DeclareAndBind(); err != nil {
		logger.Error("queue setup failed, shutting down", "error", err)
		conn.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		os.Exit(1)
	}

	// The receive loop runs on its own goroutine so the signal context is
	// observed promptly; both paths share the same cancellation source.
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- consumer.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Run observes the same ctx; wait for it to cancel the consumer tag.
		<-runErrCh
	case err := <-runErrCh:
		if err != nil {
			logger.Error("receive loop terminated", "error", err)
		}
	}

	conn.Close()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutCtx)
	logger.Info("consumer stopped", "notifications_displayed", notifier.Count())
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
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
	batchesSimulated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_batches_simulated_total",
		Help: "Total number of simulated water-quality upload batches generated.",
	})
	publishSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_publish_success_total",
		Help: "Total number of notifications successfully published to the broker.",
	})
	publishFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatorio_publish_failure_total",
		Help: "Total number of publish attempts rejected at the transport level.",
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
	interval := flag.Int("interval", getEnvInt("PUBLISH_INTERVAL", 10),
		"Seconds between simulated data uploads")
	healthcheck := flag.Bool("healthcheck", false, "Probe the metrics server and exit 0/1.")
	flag.Parse()

	metricsAddr := getEnv("METRICS_ADDR", ":9090")

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

	logger.Info("starting data publisher",
		"version", version,
		"endpoint", cfg.Redacted(),
		"interval_s", *interval,
		"metrics_addr", metricsAddr,
	)

	metricsSrv := startMetricsServer(metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup connect failure is a clean exit, not a crash: log it, release
	// the metrics server, and leave the retry decision to the operator.
	conn, err := rabbit.Dial(cfg, logger)
	if err != nil {
		logger.Error("cannot reach broker, shutting down", "error", err)
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		os.Exit(1)
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()

	logger.Info("simulating data uploads", "interval_s", *interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down publisher")
			conn.Close()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutCtx)
			return

		case <-ticker.C:
			rec := simulateUpload(rng)
			batchesSimulated.Inc()
			logger.Info("simulated data upload",
				"batch_id", rec.BatchID,
				"location", rec.Location,
				"measurements", len(rec.Measurements),
			)

			env := models.NewEnvelope(rec)
			if err := rabbit.Publish(ctx, conn, env); err != nil {
				// Publish failures are logged, not fatal; the next tick tries
				// a fresh batch.
				logger.Error("publish failed", "batch_id", rec.BatchID, "error", err)
				publishFailure.Inc()
				continue
			}
			publishSuccess.Inc()
		}
	}
}

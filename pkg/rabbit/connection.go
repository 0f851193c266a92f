// Package rabbit holds the broker-facing glue shared by the publisher and
// consumer binaries: connection lifecycle, wire codec, publish and consume
// paths, and the fixed topology of the notification pipeline.
package rabbit

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Fixed broker topology. Not configurable at runtime.
const (
	ExchangeName = "observatorio_events"
	QueueName    = "admin_notifications"
	RoutingKey   = "water.data.uploaded"
)

// heartbeat keeps otherwise idle connections alive through NAT/LB timeouts.
const heartbeat = 600 * time.Second

// Config carries the broker endpoint and credentials.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	VirtualHost string
}

// URL renders the full amqp:// connection string, credentials included.
// Never log this; use Redacted instead.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
	if c.VirtualHost != "" && c.VirtualHost != "/" {
		u.Path = "/" + c.VirtualHost
	}
	return u.String()
}

// Redacted renders the endpoint without credentials, safe for log lines.
func (c Config) Redacted() string {
	return fmt.Sprintf("amqp://%s:%d", c.Host, c.Port)
}

// Connection owns one AMQP connection and one channel, with the topic
// exchange declared. It must not be shared across goroutines; all broker
// calls are confined to the goroutine that drives the publish or receive
// loop.
type Connection struct {
	cfg  Config
	log  *slog.Logger
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial establishes the connection and channel and declares the durable topic
// exchange. The declare is idempotent: repeating it with identical parameters
// is a no-op on the broker. An unreachable broker or rejected credentials
// come back as an error for the caller to branch on; Dial never retries.
func Dial(cfg Config, log *slog.Logger) (*Connection, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		log.Error("failed to connect to broker", "endpoint", cfg.Redacted(), "error", err)
		return nil, fmt.Errorf("dial %s: %w", cfg.Redacted(), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		log.Error("failed to open channel", "endpoint", cfg.Redacted(), "error", err)
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable: survives broker restart
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		log.Error("failed to declare exchange", "exchange", ExchangeName, "error", err)
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}

	log.Info("connected to broker", "endpoint", cfg.Redacted(), "exchange", ExchangeName)
	return &Connection{cfg: cfg, log: log, conn: conn, ch: ch}, nil
}

// Close releases the channel and connection. Safe to call multiple times and
// on a Connection whose connect never succeeded.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
		c.log.Info("broker connection closed", "endpoint", c.cfg.Redacted())
	}
	c.conn = nil
}

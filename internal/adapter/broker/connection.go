package broker

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/config"
)

// Endpoint is the parsed broker address. The URL scheme selects plain or
// TLS transport; TLS runs without client auth.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// ParseEndpoint resolves RABBITMQ_ENDPOINT into a dialable endpoint.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("op=broker.ParseEndpoint: %w", err)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("op=broker.ParseEndpoint: %w: endpoint %q has no host", errInvalidEndpoint, raw)
	}
	var useTLS bool
	switch u.Scheme {
	case "amqp", "http":
		useTLS = false
	case "amqps", "amqps+ssl", "amqps+tls", "https":
		useTLS = true
	default:
		return Endpoint{}, fmt.Errorf("op=broker.ParseEndpoint: %w: scheme %q", errInvalidEndpoint, u.Scheme)
	}
	port := 5672
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return Endpoint{}, fmt.Errorf("op=broker.ParseEndpoint: %w", err)
		}
	}
	return Endpoint{Host: u.Hostname(), Port: port, UseTLS: useTLS}, nil
}

var errInvalidEndpoint = fmt.Errorf("invalid broker endpoint")

// URI builds the AMQP URI with credentials embedded.
func (e Endpoint) URI(username, password string) string {
	scheme := "amqp"
	if e.UseTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(username, password),
		Host:   fmt.Sprintf("%s:%d", e.Host, e.Port),
	}
	return u.String()
}

// Connection wraps the process-wide AMQP connection. It is shared across
// publishers and subscribers; channels are per role.
type Connection struct {
	conn *amqp.Connection
}

// Connect opens the broker connection described by the configuration,
// retrying with exponential backoff so the process tolerates broker start
// ordering. A connection that cannot be opened within the retry budget is a
// fatal startup error for the caller.
func Connect(cfg config.Config) (*Connection, error) {
	ep, err := ParseEndpoint(cfg.RabbitMQEndpoint)
	if err != nil {
		return nil, err
	}
	uri := ep.URI(cfg.RabbitMQUsername, cfg.RabbitMQPassword)

	var conn *amqp.Connection
	op := func() error {
		var dialErr error
		if ep.UseTLS {
			conn, dialErr = amqp.DialTLS(uri, &tls.Config{ServerName: ep.Host})
		} else {
			conn, dialErr = amqp.Dial(uri)
		}
		if dialErr != nil {
			slog.Warn("broker dial failed, retrying",
				slog.String("host", ep.Host),
				slog.Int("port", ep.Port),
				slog.Any("error", dialErr))
		}
		return dialErr
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 60 * time.Second
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("op=broker.Connect: %w", err)
	}
	slog.Info("broker connected", slog.String("host", ep.Host), slog.Int("port", ep.Port), slog.Bool("tls", ep.UseTLS))
	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the shared connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("op=broker.Channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection and every channel on it.
func (c *Connection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

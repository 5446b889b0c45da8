package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/SteelMorgan/autometrics-agent/internal/retry"
	"github.com/rs/zerolog/log"
)

// Options configures the ClickHouse connection
type Options struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Client wraps a ClickHouse connection
type Client struct {
	conn     driver.Conn
	retryCfg retry.Config
}

// NewClient connects to ClickHouse and verifies the connection with a ping
func NewClient(ctx context.Context, opts Options, retryCfg retry.Config) (*Client, error) {
	username := opts.Username
	if username == "" {
		username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
		Settings: clickhouse.Settings{
			"max_execution_time": 10,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := retry.Do(ctx, retryCfg, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", opts.Host).
		Int("port", opts.Port).
		Str("database", opts.Database).
		Msg("Connected to ClickHouse")

	return &Client{
		conn:     conn,
		retryCfg: retryCfg,
	}, nil
}

// Exec executes a non-SELECT query with retry logic
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.conn.Exec(ctx, query, args...)
	})
}

// Close closes the connection
func (c *Client) Close() error {
	log.Debug().Msg("Closing ClickHouse connection")
	return c.conn.Close()
}

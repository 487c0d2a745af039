package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
)

// Client wraps the ClickHouse connection that backs the event store
type Client struct {
	connection driver.Conn
	log        *zap.Logger
}

// NewClient opens and verifies a ClickHouse connection
func NewClient(ctx context.Context, cfg config.ClickHouse, log *zap.Logger) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)

	log.Info("Connecting to ClickHouse",
		zap.String("addr", addr),
		zap.String("database", cfg.Database),
		zap.Bool("use_tls", cfg.UseTLS))

	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	connection, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		TLS:              tlsConfig,
		DialTimeout:      5 * time.Second,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetime) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})

	if err != nil {
		log.Error("Failed to connect to ClickHouse", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Verify connection
	if err := connection.Ping(ctx); err != nil {
		log.Error("Failed to ping ClickHouse", zap.Error(err))
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("ClickHouse connection established successfully")

	return &Client{connection: connection, log: log}, nil
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.connection
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	c.log.Info("Closing ClickHouse connection")
	if err := c.connection.Close(); err != nil {
		c.log.Error("Error closing ClickHouse connection", zap.Error(err))
		return err
	}
	c.log.Info("ClickHouse connection closed successfully")
	return nil
}

// Pipe runs the named read query with named parameters.
func (c *Client) Pipe(ctx context.Context, name string, args ...any) (driver.Rows, error) {
	query, ok := pipes[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipe %q", name)
	}
	rows, err := c.connection.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipe %s: %w", name, err)
	}
	return rows, nil
}

// PipeRow runs a named query expected to return a single row.
func (c *Client) PipeRow(ctx context.Context, name string, args ...any) (driver.Row, error) {
	query, ok := pipes[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipe %q", name)
	}
	return c.connection.QueryRow(ctx, query, args...), nil
}

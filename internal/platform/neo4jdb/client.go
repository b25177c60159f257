package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

type Config struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

func LoadConfig() Config {
	return Config{
		URI:         envutil.String("NEO4J_URI", ""),
		User:        envutil.String("NEO4J_USER", "neo4j"),
		Password:    envutil.String("NEO4J_PASSWORD", ""),
		Database:    envutil.String("NEO4J_DATABASE", ""),
		Timeout:     envutil.Seconds("NEO4J_TIMEOUT_SECONDS", 10*time.Second),
		MaxPoolSize: envutil.PositiveInt("NEO4J_MAX_POOL_SIZE", 50),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.URI) != "" }

// Client owns the pooled driver; it is created once per process and shared by
// every request.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// New returns (nil, nil) when no URI is configured.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(nc *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			nc.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		nc.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(vctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	log.Info("Connected to Neo4j", "uri", cfg.URI, "database", cfg.Database, "max_pool", cfg.MaxPoolSize)
	return &Client{
		Driver:   driver,
		Database: cfg.Database,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

func (c *Client) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
}

func (c *Client) WriteSession(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

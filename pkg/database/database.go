package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jordanlanch/commercebi/pkg/logger"
)

// Supported driver names as registered with database/sql
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Client wraps the SQL connection pool and the dialect it speaks
type Client struct {
	DB     *sql.DB
	driver string
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum amount of time a connection may be reused
	ConnMaxIdleTime time.Duration // Maximum amount of time a connection may be idle
}

// SSLConfig holds SSL/TLS configuration for database connections
type SSLConfig struct {
	Mode         string // disable, require, verify-ca, verify-full
	CertPath     string // Path to client certificate
	KeyPath      string // Path to client key
	RootCertPath string // Path to root CA certificate
}

// DefaultPoolConfig returns sensible defaults for connection pooling
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// BuildConnectionString builds a PostgreSQL connection string with SSL parameters
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil {
		return baseURL, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := parsedURL.Query()

	// Set SSL mode (overrides any existing sslmode in URL)
	if sslCfg.Mode != "" {
		query.Set("sslmode", sslCfg.Mode)
	}
	if sslCfg.CertPath != "" {
		query.Set("sslcert", sslCfg.CertPath)
	}
	if sslCfg.KeyPath != "" {
		query.Set("sslkey", sslCfg.KeyPath)
	}
	if sslCfg.RootCertPath != "" {
		query.Set("sslrootcert", sslCfg.RootCertPath)
	}

	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// Open connects to the store, configures the pool and applies the schema.
// SSL settings only apply to the Postgres drivers.
func Open(ctx context.Context, driver, databaseURL string, poolCfg PoolConfig, sslCfg *SSLConfig, log logger.Logger) (*Client, error) {
	connStr := databaseURL
	switch driver {
	case DriverPostgres, DriverPgx:
		var err error
		connStr, err = BuildConnectionString(databaseURL, sslCfg)
		if err != nil {
			return nil, fmt.Errorf("failed building connection string: %w", err)
		}
		if sslCfg != nil && sslCfg.Mode != "" && sslCfg.Mode != "disable" {
			log.Info("database SSL enabled", "mode", sslCfg.Mode, "root_cert", sslCfg.RootCertPath)
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer; shared in-memory databases also need a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(poolCfg.MaxOpenConns)
		db.SetMaxIdleConns(poolCfg.MaxIdleConns)
		db.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)
		log.Info("database connection pool configured",
			"max_open", poolCfg.MaxOpenConns,
			"max_idle", poolCfg.MaxIdleConns,
			"max_lifetime", poolCfg.ConnMaxLifetime.String(),
			"max_idle_time", poolCfg.ConnMaxIdleTime.String())
	}

	client := NewFromDB(db, driver)
	if err := client.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	log.Info("database connected and schema applied", "driver", driver)
	return client, nil
}

// NewFromDB wraps an existing pool without touching the schema
func NewFromDB(db *sql.DB, driver string) *Client {
	return &Client{DB: db, driver: driver}
}

// Driver returns the database/sql driver name
func (c *Client) Driver() string {
	return c.driver
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.DB.Stats()
}

// Rebind rewrites '?' placeholders into the positional form the Postgres drivers expect.
// Queries must not contain literal question marks.
func (c *Client) Rebind(query string) string {
	return Rebind(c.driver, query)
}

// Rebind rewrites '?' placeholders for the given driver
func Rebind(driver, query string) string {
	if driver != DriverPostgres && driver != DriverPgx {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Package postgres is the durable document tier. Each ledger document is a
// row in a single key/value table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger-core/pkg/store"

	_ "github.com/lib/pq"
)

// Layer is a store.Layer over a PostgreSQL table.
type Layer struct {
	db     *sql.DB
	config Config
}

// Config holds PostgreSQL connection settings. DSN, when set, wins over the
// individual fields.
type Config struct {
	Name     string `yaml:"name"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns settings for a local PostgreSQL.
func DefaultConfig() Config {
	return Config{
		Name:            "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "ledger",
		SSLMode:         "disable",
		Table:           "documents",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ConnString renders the lib/pq connection string.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// New opens the pool, pings the server and creates the table if needed.
func New(config Config) (*Layer, error) {
	if config.Name == "" {
		config.Name = "postgres"
	}
	if config.Table == "" {
		config.Table = "documents"
	}

	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping: %w: %w", store.ErrLayerUnavailable, err)
	}

	l := &Layer{db: db, config: config}
	if err := l.initTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to init table: %w", err)
	}

	return l, nil
}

func (p *Layer) initTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	)`, p.config.Table))
	return err
}

func (p *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT value FROM %s WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		p.config.Table,
	)

	var value []byte
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return value, nil
}

// Set upserts the document. A zero ttl stores it without expiry.
func (p *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return store.ErrInvalidValue
	}

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()
	`, p.config.Table)

	if _, err := p.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

func (p *Layer) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.config.Table)
	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (p *Layer) Name() string {
	return p.config.Name
}

func (p *Layer) Close() error {
	return p.db.Close()
}

// Ping checks connectivity. Used by the health endpoint.
func (p *Layer) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Purge removes expired rows and returns how many were dropped.
func (p *Layer) Purge(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= now()`, p.config.Table)
	res, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w", err)
	}
	return res.RowsAffected()
}

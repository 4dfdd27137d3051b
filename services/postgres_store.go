package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresEventStore is a durable audit log of protocol events. It
// implements protocol.EventSink; insert failures are logged rather than
// propagated, since event persistence must never fail the emitting
// operation.
type PostgresEventStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresEventStore opens the database, verifies connectivity, and runs
// the schema migration.
func NewPostgresEventStore(config *PostgresConfig, log *slog.Logger) (*PostgresEventStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresEventStore{db: db, log: log}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresEventStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS protocol_events (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
		payload JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_protocol_events_kind ON protocol_events(kind);
	CREATE INDEX IF NOT EXISTS idx_protocol_events_time ON protocol_events(occurred_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Emit implements protocol.EventSink.
func (s *PostgresEventStore) Emit(ev protocol.Event) {
	_, err := s.db.Exec(
		`INSERT INTO protocol_events (kind, occurred_at, payload) VALUES ($1, $2, $3)`,
		string(ev.Kind), ev.Time, []byte(ev.Payload),
	)
	if err != nil {
		s.log.Error("persisting event failed", "kind", ev.Kind, "err", err)
	}
}

// Events returns the most recent events, newest first, optionally filtered
// by kind (empty string means all kinds).
func (s *PostgresEventStore) Events(ctx context.Context, kind protocol.EventKind, limit int) ([]protocol.Event, error) {
	query := `SELECT kind, occurred_at, payload FROM protocol_events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []protocol.Event
	for rows.Next() {
		var ev protocol.Event
		var kindStr string
		var payload []byte
		if err := rows.Scan(&kindStr, &ev.Time, &payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Kind = protocol.EventKind(kindStr)
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the database connection pool.
func (s *PostgresEventStore) Close() error {
	return s.db.Close()
}

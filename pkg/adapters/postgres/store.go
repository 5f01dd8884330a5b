// Package postgres stores graph snapshots in PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/weft/pkg/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS weft_snapshots (
    key        TEXT PRIMARY KEY,
    nodes      JSONB NOT NULL DEFAULT '[]',
    edges      JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// Store implements ports.SnapshotStore on a single JSONB table.
type Store struct {
	db DB
}

// New creates a store backed by the given pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and makes sure the schema exists.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := New(pool)
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// CreateSchema creates the snapshot table if it does not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}
	return nil
}

// DropSchema drops the snapshot table.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS weft_snapshots;`)
	return err
}

// Save upserts the snapshot; nodes and edges are replaced wholesale.
func (s *Store) Save(ctx context.Context, key string, graph domain.Graph) error {
	nodes, err := json.Marshal(orEmpty(graph.Nodes))
	if err != nil {
		return fmt.Errorf("postgres: marshal nodes: %w", err)
	}
	edges, err := json.Marshal(orEmpty(graph.Edges))
	if err != nil {
		return fmt.Errorf("postgres: marshal edges: %w", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO weft_snapshots (key, nodes, edges, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key) DO UPDATE
SET nodes = EXCLUDED.nodes, edges = EXCLUDED.edges, updated_at = NOW()`,
		key, nodes, edges,
	)
	if err != nil {
		return fmt.Errorf("postgres: save %s: %w", key, err)
	}
	return nil
}

// Load reads the snapshot stored under key.
func (s *Store) Load(ctx context.Context, key string) (domain.Graph, error) {
	var nodes, edges []byte
	err := s.db.QueryRow(ctx,
		`SELECT nodes, edges FROM weft_snapshots WHERE key = $1`, key,
	).Scan(&nodes, &edges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Graph{}, domain.ErrSnapshotNotFound
		}
		return domain.Graph{}, fmt.Errorf("postgres: load %s: %w", key, err)
	}

	var g domain.Graph
	if err := json.Unmarshal(nodes, &g.Nodes); err != nil {
		return domain.Graph{}, fmt.Errorf("postgres: unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &g.Edges); err != nil {
		return domain.Graph{}, fmt.Errorf("postgres: unmarshal edges: %w", err)
	}
	return g, nil
}

// Delete removes the snapshot. No error if the key doesn't exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM weft_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

// List returns the stored keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key FROM weft_snapshots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return keys, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package worldstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the optional durable backend named in SPEC_FULL §11,
// used in place of the FileStore when enabled. It keeps a single JSONB row per
// dj_name so multiple DJ runs can share one database without collision.
type PostgresStore struct {
	pool   *pgxpool.Pool
	djName string
}

// NewPostgresStore opens a pool against dsn, ensures the schema exists,
// and returns a store scoped to djName.
func NewPostgresStore(ctx context.Context, dsn, djName string) (*PostgresStore, error) {
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool, djName: djName}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("worldstate: parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("worldstate: open pool: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("worldstate: ping: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS broadcast_world_state (
		dj_name TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (*State, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM broadcast_world_state WHERE dj_name = $1`, s.djName,
	).Scan(&raw)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("worldstate: load: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("worldstate: decode: %w", err)
	}
	return &st, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *State) error {
	st.SchemaVersion = currentSchemaVersion
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("worldstate: encode: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO broadcast_world_state (dj_name, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (dj_name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, s.djName, raw)
	if err != nil {
		return fmt.Errorf("worldstate: save: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists ledger events to PostgreSQL. It implements Store.
//
// Concurrency control: Append runs inside a transaction holding
// pg_advisory_xact_lock keyed by a hash of the tenant ID. The lock is
// released automatically on commit or rollback, serializes appends for one
// tenant across all service instances, and leaves other tenants untouched.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

const eventColumns = `id, tenant_id, event_type, event_data, user_id,
	correlation_id, description, created_at, seq,
	content_hash, previous_hash, chain_hash`

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, e *Event) (*Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Per-tenant advisory lock, transaction-scoped. hashtextextended maps
	// the tenant ID onto the bigint advisory lock keyspace.
	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", e.TenantID,
	); err != nil {
		return nil, classifyPgError("acquire tenant lock", err)
	}

	// Read the tenant's current tip under the lock. Order strictly by seq:
	// seq is assigned at INSERT while the lock is held, so it is monotone in
	// chain order, whereas created_at (transaction-start now()) is pinned at
	// BEGIN — before the lock — and can invert under concurrency.
	prev := GenesisHash
	var tip string
	err = tx.QueryRow(ctx,
		`SELECT chain_hash FROM ledger_events
		 WHERE tenant_id = $1
		 ORDER BY seq DESC
		 LIMIT 1`, e.TenantID,
	).Scan(&tip)
	switch {
	case err == nil:
		prev = tip
	case errors.Is(err, pgx.ErrNoRows):
		// first event for this tenant — chain from genesis
	default:
		return nil, classifyPgError("read chain tip", err)
	}

	e.ID = uuid.New()
	e.PreviousHash = prev
	e.ChainHash = ChainHash(e.ContentHash, prev)

	if err := tx.QueryRow(ctx,
		`INSERT INTO ledger_events (
			id, tenant_id, event_type, event_data, user_id,
			correlation_id, description, content_hash, previous_hash, chain_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, seq`,
		e.ID, e.TenantID, e.EventType, string(e.EventData), e.UserID,
		e.CorrelationID, e.Description, e.ContentHash, e.PreviousHash, e.ChainHash,
	).Scan(&e.CreatedAt, &e.Seq); err != nil {
		return nil, classifyPgError("insert ledger event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError("commit ledger tx", err)
	}

	s.logger.Debug("ledger event appended",
		zap.String("tenant_id", e.TenantID),
		zap.String("event_type", e.EventType),
		zap.String("chain_hash", e.ChainHash),
	)
	return e, nil
}

// Tip implements Store.
func (s *PostgresStore) Tip(ctx context.Context, tenantID string) (string, bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT chain_hash FROM ledger_events
		 WHERE tenant_id = $1
		 ORDER BY seq DESC
		 LIMIT 1`, tenantID,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read chain tip: %v", ErrStore, err)
	}
	return hash, true, nil
}

// ListByTenant implements Store. Rows stream in seq order — the chain order
// fixed inside the append critical section — so verification is a single
// linear pass over the cursor.
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM ledger_events
		 WHERE tenant_id = $1
		 ORDER BY seq ASC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query ledger events: %v", ErrStore, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan ledger event: %v", ErrStore, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate ledger events: %v", ErrStore, err)
	}
	return events, nil
}

// GetByID implements Store.
func (s *PostgresStore) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM ledger_events
		 WHERE tenant_id = $1 AND id = $2`, tenantID, id,
	)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get ledger event: %v", ErrStore, err)
	}
	return e, nil
}

// Tenants implements Store.
func (s *PostgresStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT tenant_id FROM ledger_events ORDER BY tenant_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list tenants: %v", ErrStore, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan tenant: %v", ErrStore, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tenants: %v", ErrStore, err)
	}
	return ids, nil
}

// CountAll implements Store.
func (s *PostgresStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_events`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count ledger events: %v", ErrStore, err)
	}
	return n, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

// scanEvent reads one event row from a pgx row scanner.
func scanEvent(row pgx.Row) (*Event, error) {
	e := &Event{}
	var data string
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.EventType, &data, &e.UserID,
		&e.CorrelationID, &e.Description, &e.CreatedAt, &e.Seq,
		&e.ContentHash, &e.PreviousHash, &e.ChainHash,
	); err != nil {
		return nil, err
	}
	e.EventData = []byte(data)
	return e, nil
}

// classifyPgError maps PostgreSQL errors onto the chain error taxonomy.
//
// A unique violation on chain_hash is the fatal collision path: either a
// cryptographic anomaly or a concurrency bug, and must never be retried.
// Serialization failures, deadlocks and lock timeouts are transient and
// safe to retry because nothing was committed.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "ledger_events_chain_hash_key" {
				return fmt.Errorf("%w: %s: %v", ErrChainCollision, op, err)
			}
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%w: %s: %v", ErrRetryable, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

package chain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for ledger events. Both MemoryStore and
// PostgresStore implement this interface.
//
// Append owns the read-tip-then-insert critical section: implementations
// must guarantee that no two appends for the same tenant can observe the
// same tip and both commit, while appends for different tenants proceed in
// parallel. Everything else is read-only.
type Store interface {
	// Append commits the next event for e.TenantID. The caller fills
	// TenantID, EventType, EventData, ContentHash and the optional
	// traceability fields; the store resolves PreviousHash from the current
	// tip (GenesisHash when the chain is empty), computes ChainHash, and
	// assigns ID, Seq and CreatedAt at commit time.
	Append(ctx context.Context, e *Event) (*Event, error)

	// Tip returns the chain_hash of the tenant's most recent event in
	// chain order. ok is false when the tenant has no events.
	Tip(ctx context.Context, tenantID string) (hash string, ok bool, err error)

	// ListByTenant returns all events for a tenant in chain order: ascending
	// by Seq, which Append assigns inside the critical section. Timestamps
	// are display metadata and play no part in ordering.
	ListByTenant(ctx context.Context, tenantID string) ([]*Event, error)

	// GetByID returns a single event scoped to a tenant.
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Event, error)

	// Tenants returns the distinct tenant IDs present in the store.
	Tenants(ctx context.Context) ([]string, error)

	// CountAll returns the total number of events across all tenants.
	CountAll(ctx context.Context) (int64, error)

	// Ping reports store connectivity.
	Ping(ctx context.Context) error
}

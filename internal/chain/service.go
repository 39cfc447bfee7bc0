package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	appendMaxAttempts = 3
	appendBaseBackoff = 50 * time.Millisecond
)

// AppendRequest carries everything a producer supplies when appending an
// event. EventData may be any JSON-serializable value, a json.RawMessage,
// or a raw string/[]byte payload.
type AppendRequest struct {
	TenantID      string
	EventType     string
	EventData     any
	UserID        string
	CorrelationID string
	Description   string
}

// Service implements the append protocol and chain verification on top of a
// Store. It holds no chain state of its own: the tip is derived
// authoritatively from the store on every append, so any number of service
// instances can share one database.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a ledger Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Append runs the append protocol: validate, compute the content hash, and
// commit the event linked to the tenant's current tip. Transient store
// conflicts are retried with exponential backoff; a chain-hash collision
// aborts immediately and loudly.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*Event, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if req.EventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", ErrInvalidInput)
	}

	canonical, err := Canonicalize(req.EventData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e := &Event{
		TenantID:      req.TenantID,
		EventType:     req.EventType,
		EventData:     canonical,
		UserID:        req.UserID,
		CorrelationID: req.CorrelationID,
		Description:   req.Description,
		ContentHash:   sha256Hex(canonical),
	}

	var lastErr error
	for attempt := 1; attempt <= appendMaxAttempts; attempt++ {
		committed, err := s.store.Append(ctx, e)
		if err == nil {
			return committed, nil
		}
		if errors.Is(err, ErrChainCollision) {
			s.logger.Error("chain hash collision on append — aborting",
				zap.String("tenant_id", req.TenantID),
				zap.String("content_hash", e.ContentHash),
				zap.Error(err),
			)
			return nil, err
		}
		if !errors.Is(err, ErrRetryable) {
			return nil, err
		}

		lastErr = err
		if attempt < appendMaxAttempts {
			backoff := appendBaseBackoff << (attempt - 1)
			s.logger.Warn("append conflict, retrying",
				zap.String("tenant_id", req.TenantID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("append retries exhausted: %w", lastErr)
}

// List returns a tenant's full chain in chronological order.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Event, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.ListByTenant(ctx, tenantID)
}

// Get returns a single event scoped to a tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Event, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.GetByID(ctx, tenantID, id)
}

// Summary reports a tenant's event count and current tip.
type Summary struct {
	TenantID    string `json:"tenant_id"`
	TotalEvents int    `json:"total_events"`
	Tip         string `json:"tip,omitempty"`
}

// Summarize returns the chain summary for a tenant.
func (s *Service) Summarize(ctx context.Context, tenantID string) (*Summary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	events, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{TenantID: tenantID, TotalEvents: len(events)}
	if len(events) > 0 {
		sum.Tip = events[len(events)-1].ChainHash
	}
	return sum, nil
}

// Tenants returns the distinct tenant IDs present in the store.
func (s *Service) Tenants(ctx context.Context) ([]string, error) {
	return s.store.Tenants(ctx)
}

// CountAll returns the total number of events across all tenants.
func (s *Service) CountAll(ctx context.Context) (int64, error) {
	return s.store.CountAll(ctx)
}

// VerifyAll checks every tenant chain and returns the tenants whose chains
// failed verification, keyed to their results. Used by the startup sweep.
func (s *Service) VerifyAll(ctx context.Context) (map[string]*VerifyResult, error) {
	tenants, err := s.store.Tenants(ctx)
	if err != nil {
		return nil, err
	}
	failed := make(map[string]*VerifyResult)
	for _, tenantID := range tenants {
		res, err := s.Verify(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			failed[tenantID] = res
		}
	}
	return failed, nil
}

package chain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single record in a tenant's tamper-evident hash chain.
//
// Events are created exactly once by the append protocol and are never
// updated or deleted. ContentHash covers EventData only; UserID,
// CorrelationID and Description are carried for traceability and take no
// part in any hash computation.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenant_id"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	UserID        string          `json:"user_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	// Seq is the store-assigned insertion sequence, fixed inside the append
	// critical section. It alone defines chain order; CreatedAt is display
	// metadata and may disagree with it under concurrency or clock skew.
	// Not part of the wire format.
	Seq int64 `json:"-"`

	ContentHash  string `json:"content_hash"`
	PreviousHash string `json:"previous_hash"`
	ChainHash    string `json:"chain_hash"`
}

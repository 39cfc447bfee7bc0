package chain

import (
	"context"
	"fmt"
)

// VerifyResult is the well-typed outcome of a chain verification. A failed
// check is a normal answer, not an error: Error pinpoints the first
// offending event and the nature of the mismatch.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	TotalEvents int    `json:"total_events"`
	Error       string `json:"error,omitempty"`
}

// Verify walks a tenant's full chain in chronological order and checks
// every invariant: content integrity, genesis linkage, link integrity and
// chain-hash integrity. It is a single linear pass that stops at the first
// violation. An empty chain is vacuously valid.
//
// Verification is read-only and carries no side effects, so it is safe to
// run concurrently with appends; it simply reflects the snapshot returned
// by the store. The pass is cancellable through ctx.
func (s *Service) Verify(ctx context.Context, tenantID string) (*VerifyResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}

	events, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	total := len(events)
	expectedPrev := GenesisHash

	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Content integrity: the stored payload bytes must still hash to
		// the stored content hash.
		if got := sha256Hex(e.EventData); got != e.ContentHash {
			return &VerifyResult{
				TotalEvents: total,
				Error:       fmt.Sprintf("content hash mismatch at event %s", e.ID),
			}, nil
		}

		// Link integrity: each event must point at its predecessor; the
		// first event must point at the genesis constant.
		if e.PreviousHash != expectedPrev {
			if i == 0 {
				return &VerifyResult{
					TotalEvents: total,
					Error:       fmt.Sprintf("first event %s does not point to genesis", e.ID),
				}, nil
			}
			return &VerifyResult{
				TotalEvents: total,
				Error:       fmt.Sprintf("chain broken at event %s", e.ID),
			}, nil
		}

		// Chain-hash integrity: the stored chain hash must equal the
		// recomputation from the (already verified) content hash.
		if ChainHash(e.ContentHash, e.PreviousHash) != e.ChainHash {
			return &VerifyResult{
				TotalEvents: total,
				Error:       fmt.Sprintf("chain hash mismatch at event %s", e.ID),
			}, nil
		}

		expectedPrev = e.ChainHash
	}

	return &VerifyResult{Valid: true, TotalEvents: total}, nil
}

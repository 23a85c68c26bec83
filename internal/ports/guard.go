package ports

import (
	"context"

	"github.com/google/uuid"
)

// OutcomeGuard lets only the first delivery report for a message through.
type OutcomeGuard interface {
	// Claim returns false when an outcome for id was already claimed.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Release drops a claim so a later report can be applied.
	Release(ctx context.Context, id uuid.UUID) error
}

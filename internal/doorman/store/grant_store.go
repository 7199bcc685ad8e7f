package store

import (
	"context"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// GrantStore persists the capability-grant ledger.  The live channel
// overwrite stays authoritative; these rows only explain why a grant exists
// and when its removal is due.
type GrantStore interface {
	// UpsertGrant records a grant.  Re-granting the same (channel, user,
	// kind) replaces the previous row (last write wins).  ttl <= 0 stores
	// no deadline.
	UpsertGrant(ctx context.Context, channelID, userID string, kind types.GrantKind, ttl time.Duration) error

	// GetGrant returns the row for (channel, user, kind), or nil.
	GetGrant(ctx context.Context, channelID, userID string, kind types.GrantKind) (*types.PermissionGrant, error)

	// DeleteGrant removes the row.  Deleting a missing row is a no-op.
	DeleteGrant(ctx context.Context, channelID, userID string, kind types.GrantKind) error

	// ListByChannel returns all grant rows for a channel.
	ListByChannel(ctx context.Context, channelID string) ([]types.PermissionGrant, error)
}

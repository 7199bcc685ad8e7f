package store

import (
	"context"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// NewKnockRequest carries the fields for one request insert.
type NewKnockRequest struct {
	Token         string
	RequesterID   string
	RequesterName string
	ChannelID     string
	GuildID       string
	TTL           time.Duration
}

// RequestStore persists knock requests.  Status transitions out of pending
// are single atomic conditional updates: two racing callers observe at most
// one true return for the same row.
type RequestStore interface {
	// CreateRequest inserts a pending row expiring at now+TTL and returns
	// the assigned id.
	CreateRequest(ctx context.Context, req NewKnockRequest) (int64, error)

	// GetPending returns the most recent pending row for (channel,
	// requester), or nil if none exists.
	GetPending(ctx context.Context, channelID, requesterID string) (*types.KnockRequest, error)

	// GetByID returns the row only while it is still pending; terminal
	// rows are not actionable and are filtered out intentionally.
	GetByID(ctx context.Context, id int64) (*types.KnockRequest, error)

	// GetByToken is GetByID keyed by the opaque action token.
	GetByToken(ctx context.Context, token string) (*types.KnockRequest, error)

	// SetNoticeID records the platform message that carries the request's
	// approve/deny actions.
	SetNoticeID(ctx context.Context, id int64, noticeID string) error

	// Approve transitions pending→approved and reports whether the
	// transition occurred (false = already processed or missing).
	Approve(ctx context.Context, id int64, approverID string) (bool, error)

	// Deny transitions pending→denied with the same race contract.
	Deny(ctx context.Context, id int64, denierID string) (bool, error)

	// SweepExpired marks every pending row whose deadline has passed as
	// expired and returns the number of rows affected.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	// ListPending returns all pending rows, newest first.
	ListPending(ctx context.Context) ([]types.KnockRequest, error)
}

package types

import "time"

// RequestStatus is the lifecycle state of a knock request.  A request
// starts pending; every other status is terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusExpired
}

// KnockRequest is one entry-request attempt against a guarded voice channel.
// Rows are owned by the store; services hold IDs or copies only.
type KnockRequest struct {
	ID            int64
	Token         string // opaque action token carried by the published notice
	RequesterID   string
	RequesterName string
	ChannelID     string
	GuildID       string
	Status        RequestStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ApprovedBy    string // empty until approved
	ApprovedAt    *time.Time
	DeniedBy      string // empty until denied
	DeniedAt      *time.Time
	NoticeID      string // platform message carrying the approve/deny actions
}

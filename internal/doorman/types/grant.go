package types

import "time"

// GrantKind distinguishes why a capability grant exists.
type GrantKind string

const (
	// GrantVoiceConnect is a time-bounded connect+speak capability issued
	// through knock approval or the empty-channel fast track.
	GrantVoiceConnect GrantKind = "voice_connect"

	// GrantPreApproved marks a user who may enter once without knocking.
	// The row is consumed (deleted) when the user actually enters.
	GrantPreApproved GrantKind = "pre_approved"
)

// PermissionGrant is the ledger row for one capability grant.  The live
// overwrite on the channel is authoritative for "can this user connect";
// the row only records why the grant exists and when to remove it.
// (channel, user, kind) is unique; re-granting upserts.
type PermissionGrant struct {
	ChannelID string
	UserID    string
	Kind      GrantKind
	GrantedAt time.Time
	ExpiresAt *time.Time // nil = indefinite until explicitly revoked
}

// Expired reports whether the grant's own deadline has passed at t.
func (g PermissionGrant) Expired(t time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(t)
}

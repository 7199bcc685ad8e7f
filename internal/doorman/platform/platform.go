// Package platform abstracts the chat/voice platform that hosts the guarded
// channels.  The gateway connection itself lives outside this repo; services
// here only depend on these interfaces.
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the channel, member, or overwrite does not exist.
	// Revocation paths treat it as a successful no-op.
	ErrNotFound = errors.New("platform: not found")

	// ErrInsufficientPrivilege means the acting bot account lacks the
	// rights to modify the target (the platform's "missing permissions"
	// condition).
	ErrInsufficientPrivilege = errors.New("platform: insufficient privilege")
)

// ChannelKind discriminates voice channels from everything else.
type ChannelKind int

const (
	KindText ChannelKind = iota
	KindVoice
)

// Channel is a point-in-time snapshot of a guarded channel.
type Channel struct {
	ID        string
	GuildID   string
	Name      string
	Kind      ChannelKind
	Topic     string
	Occupants []string // user IDs currently connected (voice channels)
	Members   []string // user IDs on the channel's member list
}

// Overwrite is a per-user or per-role capability override on a channel.
type Overwrite struct {
	Connect bool
	Speak   bool
}

// Provider is the guarded-resource side of the platform: channel lookups,
// capability overwrites, and role membership.  All calls may fail with
// ErrInsufficientPrivilege or a generic transport error.
type Provider interface {
	// FetchChannel returns the current snapshot of a channel.
	FetchChannel(ctx context.Context, channelID string) (Channel, error)

	// EditUserOverwrite sets a user's capability override on a channel.
	EditUserOverwrite(ctx context.Context, channelID, userID string, ow Overwrite) error

	// EditEveryoneOverwrite sets the channel's default-role override,
	// controlling the channel's public/private baseline.
	EditEveryoneOverwrite(ctx context.Context, channelID string, ow Overwrite) error

	// HasConnect reports whether the user's live effective permissions on
	// the channel include connect.  This is the source of truth for "can
	// this user currently join"; ledger rows are not consulted.
	HasConnect(ctx context.Context, channelID, userID string) (bool, error)

	// MemberRoles returns the role IDs held by a guild member.
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)

	// SetTopic replaces a channel's topic text.
	SetTopic(ctx context.Context, channelID, topic string) error

	// GuildVoiceChannels lists the IDs of all voice channels in a guild.
	GuildVoiceChannels(ctx context.Context, guildID string) ([]string, error)
}

// KnockNotice is the payload published when a knock request needs approval.
type KnockNotice struct {
	Token         string // opaque action token, not the surrogate row id
	RequesterID   string
	RequesterName string
	ChannelID     string
	ChannelName   string
	ExpiresAt     time.Time
}

// NoticeOutcome labels how a published notice was resolved.
type NoticeOutcome string

const (
	OutcomeApproved NoticeOutcome = "approved"
	OutcomeDenied   NoticeOutcome = "denied"
)

// Notifier is the requester/approver-facing notification surface.
type Notifier interface {
	// PublishKnock posts the notice with approve/deny actions attached and
	// returns the platform message ID for later action disabling.
	PublishKnock(ctx context.Context, n KnockNotice) (string, error)

	// ResolveNotice disables the notice's actions and labels the outcome.
	ResolveNotice(ctx context.Context, noticeID string, outcome NoticeOutcome, actorID string) error

	// DirectMessage sends a private notification to one user.
	DirectMessage(ctx context.Context, userID, text string) error
}

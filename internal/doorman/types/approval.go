package types

// ApprovalMode selects who may approve knock requests for a channel.
type ApprovalMode string

const (
	// ApprovalChannelMember allows anyone on the channel's member list
	// (the broader container, not just current voice occupants).
	ApprovalChannelMember ApprovalMode = "channel_member"

	// ApprovalVoiceConnected allows only users currently connected to the
	// guarded voice channel itself.  Default when no setting is present.
	ApprovalVoiceConnected ApprovalMode = "voice_connected"

	// ApprovalRoleBased allows holders of at least one configured role.
	ApprovalRoleBased ApprovalMode = "role_based"
)

// ApprovalSetting is the decoded per-channel approval configuration.
// It is derived from the channel topic, never persisted on its own.
type ApprovalSetting struct {
	Mode         ApprovalMode
	AllowedRoles []string // meaningful only for ApprovalRoleBased
}

// DefaultApprovalSetting applies when a channel carries no knock token.
func DefaultApprovalSetting() ApprovalSetting {
	return ApprovalSetting{Mode: ApprovalVoiceConnected}
}

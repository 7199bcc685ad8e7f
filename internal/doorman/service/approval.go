package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/doorman-labs/doorman/internal/doorman/platform"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// knockTokenRe matches the bracketed setting embedded in a channel topic,
// e.g. [knock:voice_connected] or [knock:role_based:r1,r2].  The textual
// form is a compatibility contract with existing deployments.
var knockTokenRe = regexp.MustCompile(`\[knock:(\w+)(?::([^\[\]]+))?\]`)

// ApprovalResolver decodes per-channel approval settings and evaluates
// whether a user may approve or deny knock requests.
type ApprovalResolver struct {
	provider platform.Provider
	logger   *log.Logger
}

func NewApprovalResolver(p platform.Provider, logger *log.Logger) *ApprovalResolver {
	return &ApprovalResolver{provider: p, logger: logger}
}

// ResolveSetting reads the channel topic and decodes its knock token.
// Absent or undecodable settings fall back to the voice_connected default.
func (r *ApprovalResolver) ResolveSetting(ctx context.Context, channelID string) types.ApprovalSetting {
	ch, err := r.provider.FetchChannel(ctx, channelID)
	if err != nil {
		r.logger.Printf("resolve setting: fetch channel %s: %v", channelID, err)
		return types.DefaultApprovalSetting()
	}
	return DecodeSetting(ch.Topic)
}

// DecodeSetting parses the first knock token found in topic text.
func DecodeSetting(topic string) types.ApprovalSetting {
	m := knockTokenRe.FindStringSubmatch(topic)
	if m == nil {
		return types.DefaultApprovalSetting()
	}

	setting := types.ApprovalSetting{Mode: types.ApprovalMode(m[1])}
	if m[2] != "" {
		for _, role := range strings.Split(m[2], ",") {
			role = strings.TrimSpace(role)
			if role != "" {
				setting.AllowedRoles = append(setting.AllowedRoles, role)
			}
		}
	}
	return setting
}

// EncodeSetting renders the topic token for a setting.
func EncodeSetting(setting types.ApprovalSetting) string {
	if setting.Mode == types.ApprovalRoleBased && len(setting.AllowedRoles) > 0 {
		return fmt.Sprintf("[knock:%s:%s]", setting.Mode, strings.Join(setting.AllowedRoles, ","))
	}
	return fmt.Sprintf("[knock:%s]", setting.Mode)
}

// Authorize evaluates whether userID may act on requests for the channel
// under the given setting.  Transient provider failures degrade to false
// rather than erroring, so a flaky lookup reads as "not authorized".
func (r *ApprovalResolver) Authorize(ctx context.Context, channelID, userID string, setting types.ApprovalSetting) bool {
	switch setting.Mode {
	case types.ApprovalChannelMember:
		ch, err := r.provider.FetchChannel(ctx, channelID)
		if err != nil {
			r.logger.Printf("authorize: fetch channel %s: %v", channelID, err)
			return false
		}
		return contains(ch.Members, userID)

	case types.ApprovalVoiceConnected:
		ch, err := r.provider.FetchChannel(ctx, channelID)
		if err != nil {
			r.logger.Printf("authorize: fetch channel %s: %v", channelID, err)
			return false
		}
		if ch.Kind != platform.KindVoice {
			return false
		}
		return contains(ch.Occupants, userID)

	case types.ApprovalRoleBased:
		if len(setting.AllowedRoles) == 0 {
			return false
		}
		ch, err := r.provider.FetchChannel(ctx, channelID)
		if err != nil {
			r.logger.Printf("authorize: fetch channel %s: %v", channelID, err)
			return false
		}
		roles, err := r.provider.MemberRoles(ctx, ch.GuildID, userID)
		if err != nil {
			r.logger.Printf("authorize: roles for %s: %v", userID, err)
			return false
		}
		for _, held := range roles {
			if contains(setting.AllowedRoles, held) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// SetMode writes the setting token into the channel topic, replacing any
// previous token and preserving surrounding text.
func (r *ApprovalResolver) SetMode(ctx context.Context, channelID string, setting types.ApprovalSetting) error {
	if setting.Mode == types.ApprovalRoleBased && len(setting.AllowedRoles) == 0 {
		return ErrMissingRoles
	}

	ch, err := r.provider.FetchChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("set mode: fetch channel %s: %w", channelID, err)
	}
	if ch.Kind != platform.KindVoice {
		return ErrNotVoiceChannel
	}

	topic := strings.TrimSpace(knockTokenRe.ReplaceAllString(ch.Topic, ""))
	token := EncodeSetting(setting)
	if topic != "" {
		topic = topic + " " + token
	} else {
		topic = token
	}

	if err := r.provider.SetTopic(ctx, channelID, topic); err != nil {
		return fmt.Errorf("set mode: update topic: %w", err)
	}
	return nil
}

// BatchResult tallies a guild-wide mode application.
type BatchResult struct {
	Updated []string
	Failed  []string
}

// ApplyModeAll sets voice_connected mode on every voice channel in the
// guild, continuing past per-channel failures.
func (r *ApprovalResolver) ApplyModeAll(ctx context.Context, guildID string) (BatchResult, error) {
	ids, err := r.provider.GuildVoiceChannels(ctx, guildID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("apply mode all: list channels: %w", err)
	}

	var res BatchResult
	for _, id := range ids {
		if err := r.SetMode(ctx, id, types.ApprovalSetting{Mode: types.ApprovalVoiceConnected}); err != nil {
			r.logger.Printf("apply mode all: channel %s: %v", id, err)
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Updated = append(res.Updated, id)
	}
	return res, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

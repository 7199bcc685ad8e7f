// Package fake is an in-memory platform implementation backing tests and the
// dev wiring in cmd/doorman-server.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/doorman-labs/doorman/internal/doorman/platform"
)

type channelState struct {
	channel   platform.Channel
	userOws   map[string]platform.Overwrite
	everyone  platform.Overwrite
	roleAdmin bool
}

// Guild is a mutable in-memory guild implementing platform.Provider and
// platform.Notifier.  Safe for concurrent use.
type Guild struct {
	mu       sync.RWMutex
	id       string
	channels map[string]*channelState
	roles    map[string][]string // userID -> role IDs

	notices   map[string]Notice
	noticeSeq int
	dms       map[string][]string // userID -> messages

	// Error injection for degraded-provider tests.  When set, the named
	// call fails with the given error.
	FetchChannelErr error
	EditErr         error
	MemberRolesErr  error
	DirectMsgErr    error
}

// Notice is a recorded PublishKnock plus any later resolution.
type Notice struct {
	ID       string
	Knock    platform.KnockNotice
	Resolved bool
	Outcome  platform.NoticeOutcome
	ActorID  string
}

func NewGuild(guildID string) *Guild {
	return &Guild{
		id:       guildID,
		channels: make(map[string]*channelState),
		roles:    make(map[string][]string),
		notices:  make(map[string]Notice),
		dms:      make(map[string][]string),
	}
}

// AddVoiceChannel registers a voice channel.  everyoneConnect sets the
// default-role baseline (false = private).
func (g *Guild) AddVoiceChannel(channelID, name, topic string, everyoneConnect bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channelID] = &channelState{
		channel: platform.Channel{
			ID:      channelID,
			GuildID: g.id,
			Name:    name,
			Kind:    platform.KindVoice,
			Topic:   topic,
		},
		userOws:  make(map[string]platform.Overwrite),
		everyone: platform.Overwrite{Connect: everyoneConnect, Speak: everyoneConnect},
	}
}

// AddTextChannel registers a non-voice channel (for validation tests).
func (g *Guild) AddTextChannel(channelID, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channelID] = &channelState{
		channel: platform.Channel{
			ID:      channelID,
			GuildID: g.id,
			Name:    name,
			Kind:    platform.KindText,
		},
		userOws: make(map[string]platform.Overwrite),
	}
}

// SetRoles assigns a member's role set.
func (g *Guild) SetRoles(userID string, roleIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles[userID] = roleIDs
}

// Join marks a user as a current occupant (and member) of a voice channel.
func (g *Guild) Join(channelID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cs, ok := g.channels[channelID]; ok {
		cs.channel.Occupants = append(cs.channel.Occupants, userID)
		cs.channel.Members = appendUnique(cs.channel.Members, userID)
	}
}

// Leave removes a user from a voice channel's occupant list.
func (g *Guild) Leave(channelID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cs, ok := g.channels[channelID]; ok {
		cs.channel.Occupants = remove(cs.channel.Occupants, userID)
	}
}

// AddMember puts a user on a channel's member list without connecting them.
func (g *Guild) AddMember(channelID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cs, ok := g.channels[channelID]; ok {
		cs.channel.Members = appendUnique(cs.channel.Members, userID)
	}
}

// ── platform.Provider ────────────────────────────────────────────────────────

func (g *Guild) FetchChannel(_ context.Context, channelID string) (platform.Channel, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.FetchChannelErr != nil {
		return platform.Channel{}, g.FetchChannelErr
	}
	cs, ok := g.channels[channelID]
	if !ok {
		return platform.Channel{}, platform.ErrNotFound
	}
	ch := cs.channel
	ch.Occupants = append([]string(nil), cs.channel.Occupants...)
	ch.Members = append([]string(nil), cs.channel.Members...)
	return ch, nil
}

func (g *Guild) EditUserOverwrite(_ context.Context, channelID, userID string, ow platform.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.EditErr != nil {
		return g.EditErr
	}
	cs, ok := g.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	cs.userOws[userID] = ow
	return nil
}

func (g *Guild) EditEveryoneOverwrite(_ context.Context, channelID string, ow platform.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.EditErr != nil {
		return g.EditErr
	}
	cs, ok := g.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	cs.everyone = ow
	return nil
}

func (g *Guild) HasConnect(_ context.Context, channelID, userID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cs, ok := g.channels[channelID]
	if !ok {
		return false, platform.ErrNotFound
	}
	if ow, ok := cs.userOws[userID]; ok {
		return ow.Connect, nil
	}
	return cs.everyone.Connect, nil
}

func (g *Guild) MemberRoles(_ context.Context, _ string, userID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.MemberRolesErr != nil {
		return nil, g.MemberRolesErr
	}
	return append([]string(nil), g.roles[userID]...), nil
}

func (g *Guild) SetTopic(_ context.Context, channelID, topic string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.EditErr != nil {
		return g.EditErr
	}
	cs, ok := g.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	cs.channel.Topic = topic
	return nil
}

func (g *Guild) GuildVoiceChannels(_ context.Context, guildID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if guildID != g.id {
		return nil, platform.ErrNotFound
	}
	var ids []string
	for id, cs := range g.channels {
		if cs.channel.Kind == platform.KindVoice {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ── platform.Notifier ────────────────────────────────────────────────────────

func (g *Guild) PublishKnock(_ context.Context, n platform.KnockNotice) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.noticeSeq++
	id := fmt.Sprintf("notice-%d", g.noticeSeq)
	g.notices[id] = Notice{ID: id, Knock: n}
	return id, nil
}

func (g *Guild) ResolveNotice(_ context.Context, noticeID string, outcome platform.NoticeOutcome, actorID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.notices[noticeID]
	if !ok {
		return platform.ErrNotFound
	}
	n.Resolved = true
	n.Outcome = outcome
	n.ActorID = actorID
	g.notices[noticeID] = n
	return nil
}

func (g *Guild) DirectMessage(_ context.Context, userID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DirectMsgErr != nil {
		return g.DirectMsgErr
	}
	g.dms[userID] = append(g.dms[userID], text)
	return nil
}

// ── test inspection ──────────────────────────────────────────────────────────

// Notices returns all published notices keyed by message ID.
func (g *Guild) Notices() map[string]Notice {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Notice, len(g.notices))
	for k, v := range g.notices {
		out[k] = v
	}
	return out
}

// DirectMessages returns the DMs sent to a user.
func (g *Guild) DirectMessages(userID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dms[userID]...)
}

// UserOverwrite reports the explicit overwrite for (channel, user), if any.
func (g *Guild) UserOverwrite(channelID, userID string) (platform.Overwrite, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cs, ok := g.channels[channelID]
	if !ok {
		return platform.Overwrite{}, false
	}
	ow, ok := cs.userOws[userID]
	return ow, ok
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

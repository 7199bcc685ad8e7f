package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/platform"
	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// GrantManager issues and revokes connect+speak capability on guarded voice
// channels.  The live channel overwrite is the source of truth for "can this
// user connect"; the grant ledger only records why a grant exists and drives
// the expiry timer.  A restart loses pending timers but never locks a user
// in or out — a lingering grant is corrected by later revocation paths.
type GrantManager struct {
	provider  platform.Provider
	grants    store.GrantStore
	scheduler *RevokeScheduler
	logger    *log.Logger
}

func NewGrantManager(p platform.Provider, gs store.GrantStore, sched *RevokeScheduler, logger *log.Logger) *GrantManager {
	return &GrantManager{provider: p, grants: gs, scheduler: sched, logger: logger}
}

// Grant applies connect+speak for the user, records the ledger row, and
// schedules a one-shot revoke at ttl.  ttl <= 0 means indefinite: no timer,
// no stored deadline.  Insufficient bot privilege surfaces as
// platform.ErrInsufficientPrivilege.
func (m *GrantManager) Grant(ctx context.Context, channelID, userID string, kind types.GrantKind, ttl time.Duration) error {
	ch, err := m.provider.FetchChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("grant: fetch channel %s: %w", channelID, err)
	}
	if ch.Kind != platform.KindVoice {
		return ErrNotVoiceChannel
	}

	err = m.provider.EditUserOverwrite(ctx, channelID, userID, platform.Overwrite{Connect: true, Speak: true})
	if err != nil {
		if errors.Is(err, platform.ErrInsufficientPrivilege) {
			return err
		}
		return fmt.Errorf("grant: edit overwrite: %w", err)
	}

	if err := m.grants.UpsertGrant(ctx, channelID, userID, kind, ttl); err != nil {
		// The overwrite is already live; the ledger catches up via the
		// next revocation path.  Bounded inconsistency, not fatal.
		m.logger.Printf("grant ledger write failed channel=%s user=%s kind=%s: %v", channelID, userID, kind, err)
	}

	m.scheduler.Schedule(TimerKey{ChannelID: channelID, UserID: userID, Kind: kind}, ttl, func() {
		m.expire(channelID, userID, kind)
	})
	return nil
}

// expire is the timer callback: revoke the live capability, then drop the
// ledger row.  Both steps are idempotent, so colliding with an exit-grace
// timer or an earlier manual revoke is harmless.
func (m *GrantManager) expire(channelID, userID string, kind types.GrantKind) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Revoke(ctx, channelID, userID); err != nil {
		m.logger.Printf("expiry revoke failed channel=%s user=%s: %v", channelID, userID, err)
		return
	}
	if err := m.grants.DeleteGrant(ctx, channelID, userID, kind); err != nil {
		m.logger.Printf("expiry ledger delete failed channel=%s user=%s kind=%s: %v", channelID, userID, kind, err)
	}
}

// Revoke clears the user's connect+speak capability.  Revoking a user with
// no overwrite, or on a channel that no longer exists, is a successful
// no-op.
func (m *GrantManager) Revoke(ctx context.Context, channelID, userID string) error {
	err := m.provider.EditUserOverwrite(ctx, channelID, userID, platform.Overwrite{Connect: false, Speak: false})
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("revoke: edit overwrite: %w", err)
	}
	return nil
}

// Check reports whether the user currently holds connect capability,
// computed from live effective permissions.  Provider failure degrades to
// false.
func (m *GrantManager) Check(ctx context.Context, channelID, userID string) bool {
	ok, err := m.provider.HasConnect(ctx, channelID, userID)
	if err != nil {
		m.logger.Printf("connect check failed channel=%s user=%s: %v", channelID, userID, err)
		return false
	}
	return ok
}

// SetVisibility toggles the channel's default-role baseline: private drops
// everyone's connect, public restores connect+speak.  Individual grant rows
// are unaffected.
func (m *GrantManager) SetVisibility(ctx context.Context, channelID string, private bool) error {
	ch, err := m.provider.FetchChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("set visibility: fetch channel %s: %w", channelID, err)
	}
	if ch.Kind != platform.KindVoice {
		return ErrNotVoiceChannel
	}

	ow := platform.Overwrite{}
	if !private {
		ow = platform.Overwrite{Connect: true, Speak: true}
	}
	if err := m.provider.EditEveryoneOverwrite(ctx, channelID, ow); err != nil {
		if errors.Is(err, platform.ErrInsufficientPrivilege) {
			return err
		}
		return fmt.Errorf("set visibility: edit everyone overwrite: %w", err)
	}
	return nil
}

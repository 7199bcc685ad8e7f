package service

import (
	"context"
	"log"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// VoiceState is one entry/exit event on the guarded resource.
type VoiceState struct {
	UserID        string
	PrevChannelID string // empty on entry from nowhere
	NewChannelID  string // empty on full disconnect
}

// PresenceWatcher reacts to voice entry/exit.  Entry consumes pre-approval
// rows; exit starts the grace-window countdown on knock-issued grants.
type PresenceWatcher struct {
	grants    store.GrantStore
	manager   *GrantManager
	scheduler *RevokeScheduler
	grace     time.Duration
	logger    *log.Logger
}

func NewPresenceWatcher(gs store.GrantStore, gm *GrantManager, sched *RevokeScheduler, grace time.Duration, logger *log.Logger) *PresenceWatcher {
	return &PresenceWatcher{grants: gs, manager: gm, scheduler: sched, grace: grace, logger: logger}
}

// HandleVoiceState dispatches one event.  A move between channels is an
// exit from the previous channel; entry handling applies only when the user
// was nowhere before.
func (w *PresenceWatcher) HandleVoiceState(ctx context.Context, ev VoiceState) {
	if ev.PrevChannelID == "" && ev.NewChannelID != "" {
		w.handleEntry(ctx, ev.NewChannelID, ev.UserID)
	}
	if ev.PrevChannelID != "" && ev.PrevChannelID != ev.NewChannelID {
		w.handleExit(ctx, ev.PrevChannelID, ev.UserID)
	}
}

// handleEntry consumes an unexpired pre-approval: the row's job (skipping
// the knock) is done once the user is inside.  The capability's own expiry
// timer, set when the pre-approval was granted, keeps running untouched.
func (w *PresenceWatcher) handleEntry(ctx context.Context, channelID, userID string) {
	grant, err := w.grants.GetGrant(ctx, channelID, userID, types.GrantPreApproved)
	if err != nil {
		w.logger.Printf("entry: load pre-approval channel=%s user=%s: %v", channelID, userID, err)
		return
	}
	if grant == nil || grant.Expired(time.Now().UTC()) {
		return
	}

	if err := w.grants.DeleteGrant(ctx, channelID, userID, types.GrantPreApproved); err != nil {
		w.logger.Printf("entry: consume pre-approval channel=%s user=%s: %v", channelID, userID, err)
		return
	}
	w.logger.Printf("pre-approved user %s entered channel %s, pre-approval consumed", userID, channelID)
}

// handleExit schedules a delayed revoke for knock-issued grants only: a
// user whose access comes from anywhere else has no voice_connect row and
// is never touched.
func (w *PresenceWatcher) handleExit(ctx context.Context, channelID, userID string) {
	grant, err := w.grants.GetGrant(ctx, channelID, userID, types.GrantVoiceConnect)
	if err != nil {
		w.logger.Printf("exit: load grant channel=%s user=%s: %v", channelID, userID, err)
		return
	}
	if grant == nil {
		return
	}

	w.scheduler.Schedule(TimerKey{ChannelID: channelID, UserID: userID, Kind: types.GrantVoiceConnect}, w.grace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := w.manager.Revoke(ctx, channelID, userID); err != nil {
			w.logger.Printf("grace revoke failed channel=%s user=%s: %v", channelID, userID, err)
			return
		}
		if err := w.grants.DeleteGrant(ctx, channelID, userID, types.GrantVoiceConnect); err != nil {
			w.logger.Printf("grace ledger delete failed channel=%s user=%s: %v", channelID, userID, err)
		}
	})
}

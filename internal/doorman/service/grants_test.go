package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/platform"
	"github.com/doorman-labs/doorman/internal/doorman/service"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

func TestGrantManager_Grant_AppliesCapabilityAndLedger(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	if err := env.manager.Grant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, 5*time.Minute); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	ow, ok := env.guild.UserOverwrite("vc-1", "user-1")
	if !ok || !ow.Connect || !ow.Speak {
		t.Errorf("expected connect+speak overwrite, got %+v (present=%v)", ow, ok)
	}

	g, err := env.grants.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil || g.ExpiresAt == nil {
		t.Fatalf("expected ledger row with deadline, got %+v", g)
	}
	if !env.manager.Check(ctx, "vc-1", "user-1") {
		t.Error("expected Check=true after grant")
	}
}

func TestGrantManager_Grant_RejectsTextChannel(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	err := env.manager.Grant(context.Background(), "txt-1", "user-1", types.GrantVoiceConnect, time.Minute)
	if !errors.Is(err, service.ErrNotVoiceChannel) {
		t.Fatalf("expected ErrNotVoiceChannel, got %v", err)
	}
}

func TestGrantManager_Grant_InsufficientPrivilege(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.guild.EditErr = platform.ErrInsufficientPrivilege

	err := env.manager.Grant(context.Background(), "vc-1", "user-1", types.GrantVoiceConnect, time.Minute)
	if !errors.Is(err, platform.ErrInsufficientPrivilege) {
		t.Fatalf("expected ErrInsufficientPrivilege to surface, got %v", err)
	}
}

func TestGrantManager_ExpiryTimer_RevokesAndDeletesRow(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	if err := env.manager.Grant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, 30*time.Millisecond); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		g, _ := env.grants.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
		return g == nil
	}, "grant row deleted by expiry timer")

	if env.manager.Check(ctx, "vc-1", "user-1") {
		t.Error("expected Check=false after expiry")
	}
}

func TestGrantManager_ZeroTTL_NoTimer(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	if err := env.manager.Grant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	key := service.TimerKey{ChannelID: "vc-1", UserID: "user-1", Kind: types.GrantVoiceConnect}
	if n := env.scheduler.Pending(key); n != 0 {
		t.Errorf("expected no scheduled revoke for ttl=0, got %d", n)
	}

	g, err := env.grants.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil || g.ExpiresAt != nil {
		t.Errorf("expected indefinite ledger row, got %+v", g)
	}
}

func TestGrantManager_Revoke_IsIdempotent(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	if err := env.manager.Grant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if err := env.manager.Revoke(ctx, "vc-1", "user-1"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	if err := env.manager.Revoke(ctx, "vc-1", "user-1"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}

	if env.manager.Check(ctx, "vc-1", "user-1") {
		t.Error("expected Check=false after revoke")
	}
}

func TestGrantManager_Revoke_MissingChannelIsNoop(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	if err := env.manager.Revoke(context.Background(), "vc-gone", "user-1"); err != nil {
		t.Fatalf("expected no error revoking on a missing channel, got %v", err)
	}
}

func TestGrantManager_Check_TrustsLiveState(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	// A ledger row with no live overwrite must not make Check true.
	if err := env.grants.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, time.Hour); err != nil {
		t.Fatalf("UpsertGrant: %v", err)
	}
	if env.manager.Check(ctx, "vc-1", "user-1") {
		t.Error("Check must ignore the ledger and read live permissions")
	}
}

func TestGrantManager_SetVisibility(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	// Public channel: everyone may connect.
	env.guild.AddVoiceChannel("vc-pub", "lounge", "", true)
	if !env.manager.Check(ctx, "vc-pub", "user-1") {
		t.Fatal("expected baseline connect on a public channel")
	}

	if err := env.manager.SetVisibility(ctx, "vc-pub", true); err != nil {
		t.Fatalf("SetVisibility(private): %v", err)
	}
	if env.manager.Check(ctx, "vc-pub", "user-1") {
		t.Error("expected baseline connect removed on a private channel")
	}

	if err := env.manager.SetVisibility(ctx, "vc-pub", false); err != nil {
		t.Fatalf("SetVisibility(public): %v", err)
	}
	if !env.manager.Check(ctx, "vc-pub", "user-1") {
		t.Error("expected baseline connect restored")
	}
}

package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/doorman-labs/doorman/internal/doorman/store/sqlite"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

func TestGrantStore_UpsertAndGet(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, 5*time.Minute); err != nil {
		t.Fatalf("UpsertGrant: %v", err)
	}

	g, err := gs.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil {
		t.Fatal("expected a grant row")
	}
	if g.ExpiresAt == nil {
		t.Fatal("expected a stored deadline")
	}
	if !g.ExpiresAt.After(g.GrantedAt) {
		t.Errorf("expected deadline after grant time (got %v / %v)", g.ExpiresAt, g.GrantedAt)
	}
}

func TestGrantStore_Upsert_LastWriteWins(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, time.Minute); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, time.Hour); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	// Uniqueness of (channel, user, kind) holds: one row, newest deadline.
	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_grants WHERE channel_id = ? AND user_id = ? AND kind = ?`,
		"vc-1", "user-1", "voice_connect",
	).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after re-grant, got %d", count)
	}

	g, err := gs.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil || g.ExpiresAt == nil {
		t.Fatal("expected a grant with a deadline")
	}
	if until := time.Until(*g.ExpiresAt); until < 50*time.Minute {
		t.Errorf("expected hour-scale deadline after re-grant, got %v", until)
	}
}

func TestGrantStore_ZeroTTL_NoDeadline(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantPreApproved, 0); err != nil {
		t.Fatalf("UpsertGrant: %v", err)
	}

	g, err := gs.GetGrant(ctx, "vc-1", "user-1", types.GrantPreApproved)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil {
		t.Fatal("expected a grant row")
	}
	if g.ExpiresAt != nil {
		t.Errorf("expected no deadline for ttl=0, got %v", g.ExpiresAt)
	}
}

func TestGrantStore_KindsAreIndependent(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, time.Minute); err != nil {
		t.Fatalf("upsert voice_connect: %v", err)
	}
	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantPreApproved, time.Hour); err != nil {
		t.Fatalf("upsert pre_approved: %v", err)
	}

	if err := gs.DeleteGrant(ctx, "vc-1", "user-1", types.GrantPreApproved); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}

	g, err := gs.GetGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if g == nil {
		t.Error("deleting pre_approved must not touch the voice_connect row")
	}
}

func TestGrantStore_Delete_MissingRowIsNoop(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.DeleteGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	// Twice in a row: still no error.
	if err := gs.DeleteGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestGrantStore_ListByChannel(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := gs.UpsertGrant(ctx, "vc-1", "user-1", types.GrantVoiceConnect, time.Minute); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := gs.UpsertGrant(ctx, "vc-1", "user-2", types.GrantPreApproved, time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := gs.UpsertGrant(ctx, "vc-2", "user-3", types.GrantVoiceConnect, time.Minute); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	grants, err := gs.ListByChannel(ctx, "vc-1")
	if err != nil {
		t.Fatalf("ListByChannel: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants for vc-1, got %d", len(grants))
	}
	for _, g := range grants {
		if g.ChannelID != "vc-1" {
			t.Errorf("unexpected channel %q in result", g.ChannelID)
		}
	}
}

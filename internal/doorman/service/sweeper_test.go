package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/service"
	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/store/memory"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

func createRequest(t *testing.T, rs *memory.RequestStore, requesterID string, ttl time.Duration) int64 {
	t.Helper()
	id, err := rs.CreateRequest(context.Background(), store.NewKnockRequest{
		Token:         "tok-" + requesterID,
		RequesterID:   requesterID,
		RequesterName: requesterID,
		ChannelID:     "vc-1",
		GuildID:       "guild-1",
		TTL:           ttl,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return id
}

func TestSweep_ExpiresOverduePendingOnly(t *testing.T) {
	rs := memory.NewRequestStore()
	sw := service.NewSweeper(rs, time.Minute, silentLogger())
	ctx := context.Background()

	stale := createRequest(t, rs, "stale", -time.Minute)
	fresh := createRequest(t, rs, "fresh", time.Hour)

	sw.Sweep(ctx)

	if row, ok := rs.Get(stale); !ok || row.Status != types.StatusExpired {
		t.Errorf("expected stale request expired, got %+v", row)
	}
	if row, ok := rs.Get(fresh); !ok || row.Status != types.StatusPending {
		t.Errorf("expected fresh request untouched, got %+v", row)
	}
}

func TestSweep_LeavesDecidedRequestsAlone(t *testing.T) {
	rs := memory.NewRequestStore()
	sw := service.NewSweeper(rs, time.Minute, silentLogger())
	ctx := context.Background()

	id := createRequest(t, rs, "decided", -time.Minute)
	if ok, err := rs.Approve(ctx, id, "approver-1"); err != nil || !ok {
		t.Fatalf("Approve: ok=%v err=%v", ok, err)
	}

	sw.Sweep(ctx)

	if row, ok := rs.Get(id); !ok || row.Status != types.StatusApproved {
		t.Errorf("sweep must not touch decided requests, got %+v", row)
	}
}

func TestSweeper_StartRunsImmediateSweep(t *testing.T) {
	rs := memory.NewRequestStore()
	sw := service.NewSweeper(rs, time.Hour, silentLogger())

	id := createRequest(t, rs, "backlog", -time.Minute)

	if err := sw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sw.Stop()

	if row, ok := rs.Get(id); !ok || row.Status != types.StatusExpired {
		t.Errorf("expected backlog swept on start, got %+v", row)
	}
}

package service_test

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/platform/fake"
	"github.com/doorman-labs/doorman/internal/doorman/service"
	"github.com/doorman-labs/doorman/internal/doorman/store/memory"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// testEnv wires the full service graph against the in-memory fake guild.
type testEnv struct {
	guild     *fake.Guild
	requests  *memory.RequestStore
	grants    *memory.GrantStore
	scheduler *service.RevokeScheduler
	manager   *service.GrantManager
	approval  *service.ApprovalResolver
	knocks    *service.KnockService
	watcher   *service.PresenceWatcher
}

// envOptions tunes the timing knobs; zero values get sensible test defaults.
type envOptions struct {
	grantTTL time.Duration
	grace    time.Duration
}

func newTestEnv(t *testing.T, opt envOptions) *testEnv {
	t.Helper()

	if opt.grantTTL == 0 {
		opt.grantTTL = 5 * time.Minute
	}
	if opt.grace == 0 {
		opt.grace = 30 * time.Minute
	}

	guild := fake.NewGuild("guild-1")
	guild.AddVoiceChannel("vc-1", "war-room", "", false)
	guild.AddTextChannel("txt-1", "general")

	requests := memory.NewRequestStore()
	grants := memory.NewGrantStore()
	scheduler := service.NewRevokeScheduler()
	logger := silentLogger()

	manager := service.NewGrantManager(guild, grants, scheduler, logger)
	approval := service.NewApprovalResolver(guild, logger)
	knocks := service.NewKnockService(requests, manager, approval, guild, guild, service.KnockConfig{
		RequestTTL:       5 * time.Minute,
		GrantTTL:         opt.grantTTL,
		GuardedChannelID: "vc-1",
	}, logger)
	watcher := service.NewPresenceWatcher(grants, manager, scheduler, opt.grace, logger)

	return &testEnv{
		guild:     guild,
		requests:  requests,
		grants:    grants,
		scheduler: scheduler,
		manager:   manager,
		approval:  approval,
		knocks:    knocks,
		watcher:   watcher,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

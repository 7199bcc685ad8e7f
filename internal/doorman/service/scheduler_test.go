package service_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/service"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

func testKey() service.TimerKey {
	return service.TimerKey{ChannelID: "vc-1", UserID: "u-1", Kind: types.GrantVoiceConnect}
}

func TestScheduler_StackedTimersBothFire(t *testing.T) {
	s := service.NewRevokeScheduler()
	key := testKey()

	var fired atomic.Int32
	s.Schedule(key, 5*time.Millisecond, func() { fired.Add(1) })
	s.Schedule(key, 10*time.Millisecond, func() { fired.Add(1) })

	if n := s.Pending(key); n != 2 {
		t.Fatalf("expected 2 pending timers, got %d", n)
	}

	waitFor(t, time.Second, func() bool {
		return fired.Load() == 2
	}, "both stacked timers fired")

	if n := s.Pending(key); n != 0 {
		t.Errorf("expected fired timers to be removed, got %d pending", n)
	}
}

func TestScheduler_NonPositiveDelayIsNoop(t *testing.T) {
	s := service.NewRevokeScheduler()
	key := testKey()

	s.Schedule(key, 0, func() { t.Error("must not fire") })
	s.Schedule(key, -time.Minute, func() { t.Error("must not fire") })

	if n := s.Pending(key); n != 0 {
		t.Errorf("expected nothing scheduled, got %d", n)
	}
	time.Sleep(20 * time.Millisecond)
}

func TestScheduler_CancelStopsAllTimersForKey(t *testing.T) {
	s := service.NewRevokeScheduler()
	key := testKey()

	var fired atomic.Int32
	s.Schedule(key, 30*time.Millisecond, func() { fired.Add(1) })
	s.Schedule(key, 40*time.Millisecond, func() { fired.Add(1) })

	if !s.Cancel(key) {
		t.Fatal("Cancel should report stopped timers")
	}
	if s.Cancel(key) {
		t.Error("second Cancel has nothing to stop")
	}

	time.Sleep(80 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("cancelled timers fired %d times", n)
	}
}

func TestScheduler_KeysAreIndependent(t *testing.T) {
	s := service.NewRevokeScheduler()
	a := testKey()
	b := testKey()
	b.UserID = "u-2"

	var fired atomic.Int32
	s.Schedule(a, 30*time.Millisecond, func() { fired.Add(1) })
	s.Schedule(b, 5*time.Millisecond, func() { fired.Add(1) })

	s.Cancel(a)

	waitFor(t, time.Second, func() bool {
		return fired.Load() == 1
	}, "the untouched key's timer fired")
}

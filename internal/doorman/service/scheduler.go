package service

import (
	"sync"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// TimerKey identifies a scheduled revocation.
type TimerKey struct {
	ChannelID string
	UserID    string
	Kind      types.GrantKind
}

// RevokeScheduler runs keyed one-shot callbacks.  Scheduling the same key
// twice stacks a second timer rather than replacing the first: the grant
// flows rely on idempotent revocation, not cancellation, so both timers
// firing is safe and is the preserved default behavior.  Cancel exists for
// callers that do want to drop every pending timer for a key.
type RevokeScheduler struct {
	mu     sync.Mutex
	timers map[TimerKey][]*time.Timer
}

func NewRevokeScheduler() *RevokeScheduler {
	return &RevokeScheduler{timers: make(map[TimerKey][]*time.Timer)}
}

// Schedule runs fn once after d.  d <= 0 schedules nothing.
func (s *RevokeScheduler) Schedule(key TimerKey, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		s.timers[key] = removeTimer(s.timers[key], t)
		if len(s.timers[key]) == 0 {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = append(s.timers[key], t)
}

// Cancel stops every pending timer for the key and reports whether any
// were stopped.
func (s *RevokeScheduler) Cancel(key TimerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := false
	for _, t := range s.timers[key] {
		if t.Stop() {
			stopped = true
		}
	}
	delete(s.timers, key)
	return stopped
}

// Pending reports how many timers are outstanding for the key.
func (s *RevokeScheduler) Pending(key TimerKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[key])
}

func removeTimer(list []*time.Timer, t *time.Timer) []*time.Timer {
	out := list[:0]
	for _, x := range list {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}

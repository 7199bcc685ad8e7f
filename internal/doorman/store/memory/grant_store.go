package memory

import (
	"context"
	"sync"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/types"
)

type grantKey struct {
	channelID string
	userID    string
	kind      types.GrantKind
}

type GrantStore struct {
	mu   sync.RWMutex
	rows map[grantKey]types.PermissionGrant
}

func NewGrantStore() *GrantStore {
	return &GrantStore{rows: make(map[grantKey]types.PermissionGrant)}
}

func (s *GrantStore) UpsertGrant(_ context.Context, channelID, userID string, kind types.GrantKind, ttl time.Duration) error {
	now := time.Now().UTC()
	g := types.PermissionGrant{
		ChannelID: channelID,
		UserID:    userID,
		Kind:      kind,
		GrantedAt: now,
	}
	if ttl > 0 {
		t := now.Add(ttl)
		g.ExpiresAt = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[grantKey{channelID, userID, kind}] = g
	return nil
}

func (s *GrantStore) GetGrant(_ context.Context, channelID, userID string, kind types.GrantKind) (*types.PermissionGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.rows[grantKey{channelID, userID, kind}]
	if !ok {
		return nil, nil
	}
	cp := g
	return &cp, nil
}

func (s *GrantStore) DeleteGrant(_ context.Context, channelID, userID string, kind types.GrantKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, grantKey{channelID, userID, kind})
	return nil
}

func (s *GrantStore) ListByChannel(_ context.Context, channelID string) ([]types.PermissionGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.PermissionGrant
	for k, g := range s.rows {
		if k.channelID == channelID {
			out = append(out, g)
		}
	}
	return out, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

type RequestStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*types.KnockRequest
}

func NewRequestStore() *RequestStore {
	return &RequestStore{rows: make(map[int64]*types.KnockRequest)}
}

func (s *RequestStore) CreateRequest(_ context.Context, req store.NewKnockRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.nextID++
	id := s.nextID
	s.rows[id] = &types.KnockRequest{
		ID:            id,
		Token:         req.Token,
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		ChannelID:     req.ChannelID,
		GuildID:       req.GuildID,
		Status:        types.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(req.TTL),
	}
	return id, nil
}

func (s *RequestStore) GetPending(_ context.Context, channelID, requesterID string) (*types.KnockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *types.KnockRequest
	for _, r := range s.rows {
		if r.ChannelID != channelID || r.RequesterID != requesterID || r.Status != types.StatusPending {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) || (r.CreatedAt.Equal(newest.CreatedAt) && r.ID > newest.ID) {
			newest = r
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (s *RequestStore) GetByID(_ context.Context, id int64) (*types.KnockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != types.StatusPending {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *RequestStore) GetByToken(_ context.Context, token string) (*types.KnockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.Token == token && r.Status == types.StatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *RequestStore) SetNoticeID(_ context.Context, id int64, noticeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[id]; ok {
		r.NoticeID = noticeID
	}
	return nil
}

func (s *RequestStore) Approve(_ context.Context, id int64, approverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != types.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	r.Status = types.StatusApproved
	r.ApprovedBy = approverID
	r.ApprovedAt = &now
	return true, nil
}

func (s *RequestStore) Deny(_ context.Context, id int64, denierID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != types.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	r.Status = types.StatusDenied
	r.DeniedBy = denierID
	r.DeniedAt = &now
	return true, nil
}

func (s *RequestStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64
	for _, r := range s.rows {
		if r.Status == types.StatusPending && r.ExpiresAt.Before(now) {
			r.Status = types.StatusExpired
			swept++
		}
	}
	return swept, nil
}

func (s *RequestStore) ListPending(_ context.Context) ([]types.KnockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.KnockRequest
	for _, r := range s.rows {
		if r.Status == types.StatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Get returns any row regardless of status, for test assertions on
// terminal states.
func (s *RequestStore) Get(id int64) (types.KnockRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return types.KnockRequest{}, false
	}
	return *r, true
}

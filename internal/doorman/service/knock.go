package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/doorman-labs/doorman/internal/doorman/platform"
	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// SubmitOutcome classifies how a knock submission resolved.
type SubmitOutcome string

const (
	// SubmitAlreadyAllowed means the requester already holds live connect
	// capability; no request was created.
	SubmitAlreadyAllowed SubmitOutcome = "already_allowed"

	// SubmitFastTracked means the channel was empty, so a grant was
	// issued immediately with no approval step.
	SubmitFastTracked SubmitOutcome = "fast_tracked"

	// SubmitPending means a request was created and published for
	// approval.
	SubmitPending SubmitOutcome = "pending"
)

// SubmitResult reports a knock submission.  RequestID and Token are set
// only for SubmitPending.
type SubmitResult struct {
	Outcome   SubmitOutcome
	RequestID int64
	Token     string
}

// Decision reports an approve/deny action on a request.
type Decision string

const (
	DecisionDone Decision = "done"

	// DecisionAlreadyProcessed means the request left pending before this
	// action took effect — an informational outcome, not a failure.
	DecisionAlreadyProcessed Decision = "already_processed"
)

// SubmitParams carries one knock submission.
type SubmitParams struct {
	RequesterID   string
	RequesterName string
	ChannelID     string
	GuildID       string
	RequestTTL    time.Duration // 0 = configured default
}

// KnockConfig holds the workflow's timing defaults.
type KnockConfig struct {
	RequestTTL       time.Duration // pending-request lifetime
	GrantTTL         time.Duration // issued-capability lifetime
	GuardedChannelID string        // target for pre-approvals
}

// KnockService orchestrates the request/approval workflow.
type KnockService struct {
	requests store.RequestStore
	grants   *GrantManager
	approval *ApprovalResolver
	notifier platform.Notifier
	provider platform.Provider
	cfg      KnockConfig
	logger   *log.Logger
}

func NewKnockService(
	requests store.RequestStore,
	grants *GrantManager,
	approval *ApprovalResolver,
	notifier platform.Notifier,
	provider platform.Provider,
	cfg KnockConfig,
	logger *log.Logger,
) *KnockService {
	return &KnockService{
		requests: requests,
		grants:   grants,
		approval: approval,
		notifier: notifier,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit handles one knock.  Order matters: already-allowed short-circuits
// first, then the empty-channel fast track, then a pending request is
// created and published with approve/deny actions.
func (s *KnockService) Submit(ctx context.Context, p SubmitParams) (SubmitResult, error) {
	ch, err := s.provider.FetchChannel(ctx, p.ChannelID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit: fetch channel %s: %w", p.ChannelID, err)
	}
	if ch.Kind != platform.KindVoice {
		return SubmitResult{}, ErrNotVoiceChannel
	}

	if s.grants.Check(ctx, p.ChannelID, p.RequesterID) {
		return SubmitResult{Outcome: SubmitAlreadyAllowed}, nil
	}

	// An empty channel has no one to approve; grant directly.
	if len(ch.Occupants) == 0 {
		if err := s.grants.Grant(ctx, p.ChannelID, p.RequesterID, types.GrantVoiceConnect, s.cfg.GrantTTL); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Outcome: SubmitFastTracked}, nil
	}

	// A second pending request for the same pair is deliberately allowed;
	// log it so deployments can spot repeat knockers.
	if existing, err := s.requests.GetPending(ctx, p.ChannelID, p.RequesterID); err == nil && existing != nil {
		s.logger.Printf("duplicate knock: user=%s channel=%s existing_request=%d", p.RequesterID, p.ChannelID, existing.ID)
	}

	ttl := p.RequestTTL
	if ttl <= 0 {
		ttl = s.cfg.RequestTTL
	}

	token := uuid.NewString()
	id, err := s.requests.CreateRequest(ctx, store.NewKnockRequest{
		Token:         token,
		RequesterID:   p.RequesterID,
		RequesterName: p.RequesterName,
		ChannelID:     p.ChannelID,
		GuildID:       p.GuildID,
		TTL:           ttl,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit: create request: %w", err)
	}

	noticeID, err := s.notifier.PublishKnock(ctx, platform.KnockNotice{
		Token:         token,
		RequesterID:   p.RequesterID,
		RequesterName: p.RequesterName,
		ChannelID:     p.ChannelID,
		ChannelName:   ch.Name,
		ExpiresAt:     time.Now().UTC().Add(ttl),
	})
	if err != nil {
		// The request row stands; the sweep retires it if no one ever
		// sees a notice.
		s.logger.Printf("publish knock failed request=%d: %v", id, err)
	} else if err := s.requests.SetNoticeID(ctx, id, noticeID); err != nil {
		s.logger.Printf("record notice id failed request=%d: %v", id, err)
	}

	return SubmitResult{Outcome: SubmitPending, RequestID: id, Token: token}, nil
}

// Approve authorizes the actor against the channel's approval setting, then
// performs the atomic pending→approved transition.  Exactly one of two
// racing approvers wins; the loser sees DecisionAlreadyProcessed and no
// second grant is issued.
func (s *KnockService) Approve(ctx context.Context, requestID int64, approverID string) (Decision, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return "", fmt.Errorf("approve: load request %d: %w", requestID, err)
	}
	if req == nil {
		return DecisionAlreadyProcessed, nil
	}

	setting := s.approval.ResolveSetting(ctx, req.ChannelID)
	if !s.approval.Authorize(ctx, req.ChannelID, approverID, setting) {
		return "", ErrNotAuthorized
	}

	ok, err := s.requests.Approve(ctx, requestID, approverID)
	if err != nil {
		return "", fmt.Errorf("approve: transition request %d: %w", requestID, err)
	}
	if !ok {
		return DecisionAlreadyProcessed, nil
	}

	// Grant goes to the original requester, never the approver.
	if err := s.grants.Grant(ctx, req.ChannelID, req.RequesterID, types.GrantVoiceConnect, s.cfg.GrantTTL); err != nil {
		return "", err
	}

	if req.NoticeID != "" {
		if err := s.notifier.ResolveNotice(ctx, req.NoticeID, platform.OutcomeApproved, approverID); err != nil {
			s.logger.Printf("resolve notice failed request=%d: %v", requestID, err)
		}
	}
	return DecisionDone, nil
}

// Deny authorizes identically to Approve and performs the atomic
// pending→denied transition.  Denied is terminal: the request can no longer
// be approved or swept into expired.
func (s *KnockService) Deny(ctx context.Context, requestID int64, denierID string) (Decision, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return "", fmt.Errorf("deny: load request %d: %w", requestID, err)
	}
	if req == nil {
		return DecisionAlreadyProcessed, nil
	}

	setting := s.approval.ResolveSetting(ctx, req.ChannelID)
	if !s.approval.Authorize(ctx, req.ChannelID, denierID, setting) {
		return "", ErrNotAuthorized
	}

	ok, err := s.requests.Deny(ctx, requestID, denierID)
	if err != nil {
		return "", fmt.Errorf("deny: transition request %d: %w", requestID, err)
	}
	if !ok {
		return DecisionAlreadyProcessed, nil
	}

	if err := s.notifier.DirectMessage(ctx, req.RequesterID,
		fmt.Sprintf("Your request to join %s was denied.", req.ChannelID)); err != nil {
		s.logger.Printf("deny notification failed request=%d: %v", requestID, err)
	}

	if req.NoticeID != "" {
		if err := s.notifier.ResolveNotice(ctx, req.NoticeID, platform.OutcomeDenied, denierID); err != nil {
			s.logger.Printf("resolve notice failed request=%d: %v", requestID, err)
		}
	}
	return DecisionDone, nil
}

// Preapprove grants the target entry to the designated guarded channel
// without knocking.  The pre_approved ledger row is consumed by the
// presence watcher on entry; the capability's own timer runs independently.
// DM delivery failure is reported but does not undo the grant.
func (s *KnockService) Preapprove(ctx context.Context, targetUserID string, ttl time.Duration) error {
	channelID := s.cfg.GuardedChannelID
	if channelID == "" {
		return fmt.Errorf("preapprove: no guarded channel configured")
	}

	ch, err := s.provider.FetchChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("preapprove: fetch channel %s: %w", channelID, err)
	}
	if ch.Kind != platform.KindVoice {
		return ErrNotVoiceChannel
	}

	if err := s.grants.Grant(ctx, channelID, targetUserID, types.GrantPreApproved, ttl); err != nil {
		return err
	}

	msg := fmt.Sprintf("You have been pre-approved to join %s for the next %s. Entry consumes the pre-approval; re-entry needs a fresh knock.",
		ch.Name, ttl)
	if err := s.notifier.DirectMessage(ctx, targetUserID, msg); err != nil {
		s.logger.Printf("preapprove DM failed user=%s: %v", targetUserID, err)
	}
	return nil
}

// ResolveToken looks up the pending request behind an action token.
func (s *KnockService) ResolveToken(ctx context.Context, token string) (*types.KnockRequest, error) {
	return s.requests.GetByToken(ctx, token)
}

// Package governance implements proposals, voting and community goals.
//
// Proposal lifecycle: active until executed. A proposal whose deadline passes
// without passing reads as lapsed; a passed proposal stays executable after
// the deadline. Votes close at the deadline or on execution, whichever comes
// first.
package governance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/governance"
	ledgerdomain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/metrics"
	"github.com/CommonsHub/community_layer/internal/app/services/identity"
	"github.com/CommonsHub/community_layer/internal/app/storage"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

// VotingWindow is the fixed span between proposal creation and its deadline.
const VotingWindow = 7 * 24 * time.Hour

// Quorum bounds for the per-proposal draw.
const (
	QuorumMin = 10
	QuorumMax = 30
)

var (
	// ErrAlreadyVoted is returned when a member casts a second ballot on the
	// same proposal.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrVotingClosed is returned when the deadline has passed or the
	// proposal was executed.
	ErrVotingClosed = errors.New("voting closed")

	// ErrAlreadyExecuted is returned when executing an executed proposal.
	ErrAlreadyExecuted = errors.New("proposal already executed")

	// ErrQuorumNotMet is returned when a proposal lacks the votes to pass.
	ErrQuorumNotMet = errors.New("quorum not met")

	// ErrInvalidChoice is returned for a ballot option outside for/against/
	// abstain.
	ErrInvalidChoice = errors.New("invalid vote choice")

	// ErrNotEligible is returned when identity gating is enabled and the
	// member is not verified.
	ErrNotEligible = errors.New("identity not verified")
)

// LedgerDebiter is the narrow slice of the ledger the governance engine
// needs: goal contributions debit the contributor's spendable balance.
type LedgerDebiter interface {
	Debit(ctx context.Context, userID string, amount ledgerdomain.Cents, reference string) error
}

// Service owns proposals, votes and community goals. Mutations on one
// proposal or goal are serialized through a per-key lock; in particular the
// vote-uniqueness check and the tally increment form one atomic step.
type Service struct {
	store    storage.GovernanceStore
	locks    *keymutex.KeyMutex
	log      *logger.Logger
	now      func() time.Time
	ledger   LedgerDebiter
	verifier identity.Verifier

	quorumMu sync.Mutex
	quorum   func() int
}

// New constructs a governance service.
func New(store storage.GovernanceStore, locks *keymutex.KeyMutex, log *logger.Logger) *Service {
	if locks == nil {
		locks = keymutex.New()
	}
	if log == nil {
		log = logger.NewDefault("governance")
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Service{
		store:  store,
		locks:  locks,
		log:    log,
		now:    time.Now,
		quorum: func() int { return QuorumMin + rng.Intn(QuorumMax-QuorumMin+1) },
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithQuorumSource overrides the per-proposal quorum draw. Intended for
// tests.
func (s *Service) WithQuorumSource(quorum func() int) *Service {
	if quorum != nil {
		s.quorum = quorum
	}
	return s
}

// AttachLedger wires the ledger so goal contributions debit the contributor.
// Without it contributions are recorded but nothing is debited.
func (s *Service) AttachLedger(d LedgerDebiter) { s.ledger = d }

// AttachVerifier enables identity gating: proposal creation and voting then
// require a verified identity. Nil leaves gating off.
func (s *Service) AttachVerifier(v identity.Verifier) { s.verifier = v }

func (s *Service) drawQuorum() int {
	s.quorumMu.Lock()
	defer s.quorumMu.Unlock()
	return s.quorum()
}

func (s *Service) checkEligibility(ctx context.Context, userID string) error {
	if s.verifier == nil {
		return nil
	}
	verification, err := s.verifier.Verify(ctx, userID)
	if err != nil {
		return fmt.Errorf("identity check: %w", err)
	}
	if !verification.Verified {
		return fmt.Errorf("%w: user %s", ErrNotEligible, userID)
	}
	return nil
}

// CreateProposal opens a new proposal. The quorum is drawn once here and is
// fixed for the proposal's lifetime.
func (s *Service) CreateProposal(ctx context.Context, author, title, description, category string, budget ledgerdomain.Cents) (domain.Proposal, error) {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	if author == "" {
		return domain.Proposal{}, fmt.Errorf("author is required")
	}
	if title == "" {
		return domain.Proposal{}, fmt.Errorf("title is required")
	}
	if err := s.checkEligibility(ctx, author); err != nil {
		return domain.Proposal{}, err
	}

	now := s.now().UTC()
	p := domain.Proposal{
		ID:             uuid.NewString(),
		Author:         author,
		Title:          title,
		Description:    strings.TrimSpace(description),
		Category:       strings.TrimSpace(category),
		Budget:         budget,
		Quorum:         s.drawQuorum(),
		Status:         domain.ProposalActive,
		CreatedAt:      now,
		VotingDeadline: now.Add(VotingWindow),
	}
	p, err := s.store.CreateProposal(ctx, p)
	if err != nil {
		return domain.Proposal{}, err
	}

	s.log.WithField("proposal_id", p.ID).
		WithField("author", author).
		WithField("quorum", p.Quorum).
		Info("proposal created")
	return p, nil
}

// CastVote records a ballot. The uniqueness check and tally increment run
// under the proposal's lock, so two concurrent ballots from the same member
// cannot both land.
func (s *Service) CastVote(ctx context.Context, proposalID, userID string, choice domain.VoteChoice, reason string) (domain.Vote, error) {
	if !domain.ValidChoice(choice) {
		return domain.Vote{}, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Vote{}, fmt.Errorf("user id is required")
	}
	if err := s.checkEligibility(ctx, userID); err != nil {
		return domain.Vote{}, err
	}

	s.locks.Lock(proposalID)
	defer s.locks.Unlock(proposalID)

	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Vote{}, err
	}

	now := s.now().UTC()
	if p.Status == domain.ProposalExecuted || now.After(p.VotingDeadline) {
		return domain.Vote{}, fmt.Errorf("%w: proposal %s", ErrVotingClosed, proposalID)
	}
	if _, exists, err := s.store.GetVote(ctx, proposalID, userID); err != nil {
		return domain.Vote{}, err
	} else if exists {
		return domain.Vote{}, fmt.Errorf("%w: user %s on proposal %s", ErrAlreadyVoted, userID, proposalID)
	}

	vote := domain.Vote{
		ProposalID: proposalID,
		UserID:     userID,
		Choice:     choice,
		Reason:     strings.TrimSpace(reason),
		CreatedAt:  now,
	}
	if _, err := s.store.PutVote(ctx, vote); err != nil {
		return domain.Vote{}, err
	}

	switch choice {
	case domain.VoteFor:
		p.Tally.For++
	case domain.VoteAgainst:
		p.Tally.Against++
	case domain.VoteAbstain:
		p.Tally.Abstain++
	}
	if _, err := s.store.UpdateProposal(ctx, p); err != nil {
		return domain.Vote{}, err
	}

	metrics.RecordVote(string(choice))
	s.log.WithField("proposal_id", proposalID).
		WithField("user_id", userID).
		WithField("choice", string(choice)).
		Info("vote cast")
	return vote, nil
}

// ExecuteProposal finalizes a passed proposal. Passing requires the tally to
// reach quorum with strictly more for than against votes; execution freezes
// the tally, and later ballots fail with ErrVotingClosed.
func (s *Service) ExecuteProposal(ctx context.Context, proposalID string) (domain.Proposal, error) {
	s.locks.Lock(proposalID)
	defer s.locks.Unlock(proposalID)

	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if p.Status == domain.ProposalExecuted {
		return domain.Proposal{}, fmt.Errorf("%w: proposal %s", ErrAlreadyExecuted, proposalID)
	}
	if !p.Passed() {
		return domain.Proposal{}, fmt.Errorf("%w: %d of %d votes, %d for / %d against",
			ErrQuorumNotMet, p.Tally.Total(), p.Quorum, p.Tally.For, p.Tally.Against)
	}

	now := s.now().UTC()
	p.Status = domain.ProposalExecuted
	p.ExecutedAt = &now
	p, err = s.store.UpdateProposal(ctx, p)
	if err != nil {
		return domain.Proposal{}, err
	}

	s.log.WithField("proposal_id", proposalID).Info("proposal executed")
	return p, nil
}

// normalizeStatus computes the read-side status: a proposal past its
// deadline that never passed reads as lapsed. Nothing is written back.
func (s *Service) normalizeStatus(p domain.Proposal) domain.Proposal {
	if p.Status == domain.ProposalActive && s.now().UTC().After(p.VotingDeadline) && !p.Passed() {
		p.Status = domain.ProposalLapsed
	}
	return p
}

// GetProposal returns the proposal with the caller's voting state.
func (s *Service) GetProposal(ctx context.Context, proposalID, userID string) (domain.ProposalView, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.ProposalView{}, err
	}

	hasVoted := false
	if userID != "" {
		_, hasVoted, err = s.store.GetVote(ctx, proposalID, userID)
		if err != nil {
			return domain.ProposalView{}, err
		}
	}

	now := s.now().UTC()
	return domain.ProposalView{
		Proposal:   s.normalizeStatus(p),
		HasVoted:   hasVoted,
		VotingOpen: p.Status == domain.ProposalActive && !now.After(p.VotingDeadline),
	}, nil
}

// ListProposals returns all proposals, newest first, with statuses
// normalized.
func (s *Service) ListProposals(ctx context.Context) ([]domain.Proposal, error) {
	proposals, err := s.store.ListProposals(ctx)
	if err != nil {
		return nil, err
	}
	for i := range proposals {
		proposals[i] = s.normalizeStatus(proposals[i])
	}
	return proposals, nil
}

// CreateGoal registers a community funding goal.
func (s *Service) CreateGoal(ctx context.Context, title, category string, target ledgerdomain.Cents, deadline time.Time) (domain.CommunityGoal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.CommunityGoal{}, fmt.Errorf("title is required")
	}
	if target <= 0 {
		return domain.CommunityGoal{}, fmt.Errorf("target amount must be positive")
	}

	g := domain.CommunityGoal{
		ID:           uuid.NewString(),
		Title:        title,
		Category:     strings.TrimSpace(category),
		TargetAmount: target,
		Deadline:     deadline.UTC(),
		CreatedAt:    s.now().UTC(),
	}
	g, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return domain.CommunityGoal{}, err
	}

	s.log.WithField("goal_id", g.ID).
		WithField("target", target.String()).
		Info("community goal created")
	return g, nil
}

// ContributeToGoal records a funding event: the contributor's spendable
// balance is debited and the goal's running total and contributor count
// grow. Totals never decrease; goals keep accepting contributions after
// their deadline.
func (s *Service) ContributeToGoal(ctx context.Context, goalID, userID string, amount ledgerdomain.Cents, anonymous bool) (domain.Contribution, domain.GoalView, error) {
	if amount <= 0 {
		return domain.Contribution{}, domain.GoalView{}, fmt.Errorf("amount must be positive")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Contribution{}, domain.GoalView{}, fmt.Errorf("user id is required")
	}

	s.locks.Lock("goal:" + goalID)
	defer s.locks.Unlock("goal:" + goalID)

	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return domain.Contribution{}, domain.GoalView{}, err
	}

	if s.ledger != nil {
		if err := s.ledger.Debit(ctx, userID, amount, "goal:"+goalID); err != nil {
			return domain.Contribution{}, domain.GoalView{}, err
		}
	}

	c := domain.Contribution{
		ID:        uuid.NewString(),
		GoalID:    goalID,
		UserID:    userID,
		Amount:    amount,
		Anonymous: anonymous,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.store.AppendContribution(ctx, c); err != nil {
		return domain.Contribution{}, domain.GoalView{}, err
	}

	g.CurrentAmount += amount
	g.ContributorCount++
	g, err = s.store.UpdateGoal(ctx, g)
	if err != nil {
		return domain.Contribution{}, domain.GoalView{}, err
	}

	metrics.RecordContribution()
	s.log.WithField("goal_id", goalID).
		WithField("user_id", userID).
		WithField("amount", amount.String()).
		Info("goal contribution")
	return c, s.goalView(g), nil
}

// ListGoals returns all goals with derived funding figures.
func (s *Service) ListGoals(ctx context.Context) ([]domain.GoalView, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.GoalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, s.goalView(g))
	}
	return views, nil
}

// Participation walks proposals and goals to summarize one member's
// governance activity.
func (s *Service) Participation(ctx context.Context, userID string) (domain.Participation, error) {
	summary := domain.Participation{UserID: userID}

	proposals, err := s.store.ListProposals(ctx)
	if err != nil {
		return domain.Participation{}, err
	}
	for _, p := range proposals {
		if p.Author == userID {
			summary.ProposalsAuthored++
		}
		_, voted, err := s.store.GetVote(ctx, p.ID, userID)
		if err != nil {
			return domain.Participation{}, err
		}
		if voted {
			summary.VotesCast++
		}
	}

	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return domain.Participation{}, err
	}
	for _, g := range goals {
		contributions, err := s.store.ListContributions(ctx, g.ID)
		if err != nil {
			return domain.Participation{}, err
		}
		for _, c := range contributions {
			if c.UserID == userID {
				summary.Contributions++
				summary.AmountContributed += c.Amount
			}
		}
	}
	return summary, nil
}

func (s *Service) goalView(g domain.CommunityGoal) domain.GoalView {
	percent := 0.0
	if g.TargetAmount > 0 {
		percent = float64(g.CurrentAmount) / float64(g.TargetAmount) * 100.0
	}
	days := int(math.Ceil(g.Deadline.Sub(s.now().UTC()).Hours() / 24.0))
	return domain.GoalView{
		CommunityGoal: g,
		PercentFunded: percent,
		DaysRemaining: days,
	}
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CommonsHub/community_layer/internal/app/domain/governance"
	"github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage"
)

// Store is the in-memory implementation of the storage interfaces. It is safe
// for concurrent use; readers always receive defensive copies so no caller
// can observe a torn or later-mutated record.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	accounts      map[string]ledger.Account
	transactions  map[string][]ledger.Transaction
	proposals     map[string]governance.Proposal
	votes         map[string]governance.Vote
	goals         map[string]governance.CommunityGoal
	contributions map[string][]governance.Contribution
}

var _ storage.LedgerStore = (*Store)(nil)
var _ storage.GovernanceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		accounts:      make(map[string]ledger.Account),
		transactions:  make(map[string][]ledger.Transaction),
		proposals:     make(map[string]governance.Proposal),
		votes:         make(map[string]governance.Vote),
		goals:         make(map[string]governance.CommunityGoal),
		contributions: make(map[string][]governance.Contribution),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func voteKey(proposalID, userID string) string {
	return proposalID + "\x00" + userID
}

// LedgerStore implementation -------------------------------------------------

func (s *Store) EnsureAccount(_ context.Context, userID string) (ledger.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ledger.Account{}, fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[userID]; ok {
		return acct, nil
	}

	now := time.Now().UTC()
	acct := ledger.Account{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[userID] = acct
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, userID string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return ledger.Account{}, fmt.Errorf("account %s: %w", userID, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) PutAccount(_ context.Context, acct ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.UserID]
	if !ok {
		return ledger.Account{}, fmt.Errorf("account %s: %w", acct.UserID, storage.ErrNotFound)
	}

	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[acct.UserID] = acct
	return acct, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.Status = ledger.StatusCompleted
	tx.Fee = cloneFee(tx.Fee)

	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.transactions[userID]
	result := make([]ledger.Transaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, cloneTransaction(entries[i]))
	}
	return result, nil
}

// GovernanceStore implementation ---------------------------------------------

func (s *Store) CreateProposal(_ context.Context, p governance.Proposal) (governance.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.proposals[p.ID]; exists {
		return governance.Proposal{}, fmt.Errorf("proposal %s: %w", p.ID, storage.ErrDuplicate)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.proposals[p.ID] = p
	return cloneProposal(p), nil
}

func (s *Store) UpdateProposal(_ context.Context, p governance.Proposal) (governance.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.proposals[p.ID]
	if !ok {
		return governance.Proposal{}, fmt.Errorf("proposal %s: %w", p.ID, storage.ErrNotFound)
	}

	p.CreatedAt = original.CreatedAt
	s.proposals[p.ID] = p
	return cloneProposal(p), nil
}

func (s *Store) GetProposal(_ context.Context, id string) (governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return governance.Proposal{}, fmt.Errorf("proposal %s: %w", id, storage.ErrNotFound)
	}
	return cloneProposal(p), nil
}

func (s *Store) ListProposals(_ context.Context) ([]governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]governance.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		result = append(result, cloneProposal(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) PutVote(_ context.Context, v governance.Vote) (governance.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(v.ProposalID, v.UserID)
	if _, exists := s.votes[key]; exists {
		return governance.Vote{}, fmt.Errorf("vote by %s on proposal %s: %w", v.UserID, v.ProposalID, storage.ErrDuplicate)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.votes[key] = v
	return v, nil
}

func (s *Store) GetVote(_ context.Context, proposalID, userID string) (governance.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[voteKey(proposalID, userID)]
	return v, ok, nil
}

func (s *Store) ListVotes(_ context.Context, proposalID string) ([]governance.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]governance.Vote, 0)
	for _, v := range s.votes {
		if v.ProposalID == proposalID {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreateGoal(_ context.Context, g governance.CommunityGoal) (governance.CommunityGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = s.nextIDLocked()
	} else if _, exists := s.goals[g.ID]; exists {
		return governance.CommunityGoal{}, fmt.Errorf("goal %s: %w", g.ID, storage.ErrDuplicate)
	}

	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, g governance.CommunityGoal) (governance.CommunityGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.goals[g.ID]
	if !ok {
		return governance.CommunityGoal{}, fmt.Errorf("goal %s: %w", g.ID, storage.ErrNotFound)
	}

	g.CreatedAt = original.CreatedAt
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (governance.CommunityGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok {
		return governance.CommunityGoal{}, fmt.Errorf("goal %s: %w", id, storage.ErrNotFound)
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context) ([]governance.CommunityGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]governance.CommunityGoal, 0, len(s.goals))
	for _, g := range s.goals {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) AppendContribution(_ context.Context, c governance.Contribution) (governance.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.contributions[c.GoalID] = append(s.contributions[c.GoalID], c)
	return c, nil
}

func (s *Store) ListContributions(_ context.Context, goalID string) ([]governance.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]governance.Contribution(nil), s.contributions[goalID]...), nil
}

// Helpers --------------------------------------------------------------------

func cloneFee(fee *ledger.Cents) *ledger.Cents {
	if fee == nil {
		return nil
	}
	f := *fee
	return &f
}

func cloneTransaction(tx ledger.Transaction) ledger.Transaction {
	tx.Fee = cloneFee(tx.Fee)
	return tx
}

func cloneProposal(p governance.Proposal) governance.Proposal {
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		p.ExecutedAt = &t
	}
	return p
}

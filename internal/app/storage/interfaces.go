// Package storage defines the persistence interfaces the services depend on.
// The only implementation is in-memory: all state lives for the lifetime of
// the process and is lost on restart.
package storage

import (
	"context"
	"errors"

	"github.com/CommonsHub/community_layer/internal/app/domain/governance"
	"github.com/CommonsHub/community_layer/internal/app/domain/ledger"
)

// ErrNotFound marks lookups for absent accounts, proposals or goals.
// Implementations wrap it so callers can match with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrDuplicate marks writes that would violate a uniqueness key, such as a
// second ballot for the same (proposal, voter) pair.
var ErrDuplicate = errors.New("already exists")

// LedgerStore persists accounts and their transaction logs.
type LedgerStore interface {
	// EnsureAccount returns the account for userID, creating an empty one
	// if it does not exist yet.
	EnsureAccount(ctx context.Context, userID string) (ledger.Account, error)
	GetAccount(ctx context.Context, userID string) (ledger.Account, error)
	PutAccount(ctx context.Context, acct ledger.Account) (ledger.Account, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)

	AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	// ListTransactions returns the account's log most-recent-first. Repeated
	// calls without intervening writes return identical output.
	ListTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error)
}

// GovernanceStore persists proposals, votes, goals and contributions.
type GovernanceStore interface {
	CreateProposal(ctx context.Context, p governance.Proposal) (governance.Proposal, error)
	UpdateProposal(ctx context.Context, p governance.Proposal) (governance.Proposal, error)
	GetProposal(ctx context.Context, id string) (governance.Proposal, error)
	ListProposals(ctx context.Context) ([]governance.Proposal, error)

	PutVote(ctx context.Context, v governance.Vote) (governance.Vote, error)
	GetVote(ctx context.Context, proposalID, userID string) (governance.Vote, bool, error)
	ListVotes(ctx context.Context, proposalID string) ([]governance.Vote, error)

	CreateGoal(ctx context.Context, g governance.CommunityGoal) (governance.CommunityGoal, error)
	UpdateGoal(ctx context.Context, g governance.CommunityGoal) (governance.CommunityGoal, error)
	GetGoal(ctx context.Context, id string) (governance.CommunityGoal, error)
	ListGoals(ctx context.Context) ([]governance.CommunityGoal, error)

	AppendContribution(ctx context.Context, c governance.Contribution) (governance.Contribution, error)
	ListContributions(ctx context.Context, goalID string) ([]governance.Contribution, error)
}

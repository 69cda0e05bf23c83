// Package governance defines proposals, votes and community goals.
package governance

import (
	"time"

	"github.com/CommonsHub/community_layer/internal/app/domain/ledger"
)

// ProposalStatus is the lifecycle state of a proposal. Executed and lapsed
// are terminal; lapsed is computed for proposals whose voting deadline passed
// without the proposal passing.
type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalExecuted ProposalStatus = "executed"
	ProposalLapsed   ProposalStatus = "lapsed"
)

// VoteChoice is a ballot option.
type VoteChoice string

const (
	VoteFor     VoteChoice = "for"
	VoteAgainst VoteChoice = "against"
	VoteAbstain VoteChoice = "abstain"
)

// ValidChoice reports whether c is one of the three ballot options.
func ValidChoice(c VoteChoice) bool {
	switch c {
	case VoteFor, VoteAgainst, VoteAbstain:
		return true
	}
	return false
}

// Tally counts ballots per choice.
type Tally struct {
	For     int
	Against int
	Abstain int
}

// Total is the number of ballots cast.
func (t Tally) Total() int { return t.For + t.Against + t.Abstain }

// Proposal is a collective decision under vote. Quorum is drawn once at
// creation and never recomputed.
type Proposal struct {
	ID             string
	Author         string
	Title          string
	Description    string
	Category       string
	Budget         ledger.Cents
	Quorum         int
	Tally          Tally
	Status         ProposalStatus
	CreatedAt      time.Time
	VotingDeadline time.Time
	ExecutedAt     *time.Time
}

// Passed reports whether the proposal meets quorum with more for than
// against votes.
func (p Proposal) Passed() bool {
	return p.Tally.Total() >= p.Quorum && p.Tally.For > p.Tally.Against
}

// Vote is an immutable ballot. The (ProposalID, UserID) pair is the
// uniqueness key: one ballot per member per proposal, ever.
type Vote struct {
	ProposalID string
	UserID     string
	Choice     VoteChoice
	Reason     string
	CreatedAt  time.Time
}

// CommunityGoal is a funding target. CurrentAmount only ever grows; goals are
// never closed automatically, even past their deadline.
type CommunityGoal struct {
	ID               string
	Title            string
	Category         string
	TargetAmount     ledger.Cents
	CurrentAmount    ledger.Cents
	ContributorCount int
	Deadline         time.Time
	CreatedAt        time.Time
}

// Contribution is an append-only funding event against a goal.
type Contribution struct {
	ID        string
	GoalID    string
	UserID    string
	Amount    ledger.Cents
	Anonymous bool
	CreatedAt time.Time
}

// ProposalView enriches a proposal with caller-specific voting state.
type ProposalView struct {
	Proposal
	HasVoted   bool
	VotingOpen bool
}

// GoalView enriches a goal with derived display figures. PercentFunded is
// unclamped and DaysRemaining goes negative once the deadline has passed.
type GoalView struct {
	CommunityGoal
	PercentFunded float64
	DaysRemaining int
}

// Participation summarizes one member's governance activity.
type Participation struct {
	UserID            string
	ProposalsAuthored int
	VotesCast         int
	Contributions     int
	AmountContributed ledger.Cents
}

// Package ledger defines the monetary domain model: accounts holding
// community-currency balances and the immutable transaction log.
package ledger

import (
	"fmt"
	"time"
)

// Cents is a fixed-point amount of community currency in hundredths of a
// unit. All balance arithmetic happens in cents; floats appear only in
// display conversions.
type Cents int64

// Units returns the amount as whole currency units for display.
func (c Cents) Units() float64 { return float64(c) / 100.0 }

// String formats the amount with two decimal places.
func (c Cents) String() string { return fmt.Sprintf("%.2f", c.Units()) }

// TransactionKind classifies ledger transactions.
type TransactionKind string

const (
	KindIncomeClaim      TransactionKind = "income-claim"
	KindPayment          TransactionKind = "payment"
	KindSavingsDeposit   TransactionKind = "savings-deposit"
	KindGoalContribution TransactionKind = "goal-contribution"
)

// TransactionStatus is the settlement state of a transaction. The ledger has
// no pending state; every recorded transaction is complete.
type TransactionStatus string

const StatusCompleted TransactionStatus = "completed"

// Account holds one member's balances. Accounts are created on first touch
// and live for the lifetime of the process.
type Account struct {
	UserID            string
	Spendable         Cents
	SavingsPrincipal  Cents
	LastIncomeClaimAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transaction is an immutable ledger record. Fee is nil except for payments;
// Counterparty is set for payments and goal contributions; RatePercent is the
// nominal savings rate carried on savings deposits.
type Transaction struct {
	ID           string
	UserID       string
	Kind         TransactionKind
	Amount       Cents
	Fee          *Cents
	Counterparty string
	RatePercent  float64
	Status       TransactionStatus
	CreatedAt    time.Time
}

// Balance is the read-side view of an account.
type Balance struct {
	UserID                string
	Spendable             Cents
	SavingsPrincipal      Cents
	SpendableUSD          float64
	SavingsUSD            float64
	ProjectedAnnualReturn Cents
}

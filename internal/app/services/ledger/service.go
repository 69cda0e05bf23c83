// Package ledger implements the account ledger: basic-income claims, peer
// payments and balance reads. Payments debit the sender only; the
// counterparty is recorded as an external settlement address and never
// credited inside the ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/metrics"
	"github.com/CommonsHub/community_layer/internal/app/storage"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

var (
	// ErrInsufficientFunds is returned when a debit would leave the
	// spendable balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCooldownActive is returned when income is claimed again within the
	// cooldown window.
	ErrCooldownActive = errors.New("income cooldown active")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Service owns account balances and the transaction log. All mutations on a
// single account are serialized through a per-user lock so concurrent
// requests cannot double-claim income or overdraw a balance.
type Service struct {
	store storage.LedgerStore
	locks *keymutex.KeyMutex
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a ledger service. Pass the same locks instance to every
// service that mutates accounts; nil creates a private one.
func New(store storage.LedgerStore, locks *keymutex.KeyMutex, log *logger.Logger) *Service {
	if locks == nil {
		locks = keymutex.New()
	}
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{
		store: store,
		locks: locks,
		log:   log,
		now:   time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureAccount returns the account for userID, creating it on first touch.
func (s *Service) EnsureAccount(ctx context.Context, userID string) (domain.Account, error) {
	return s.store.EnsureAccount(ctx, userID)
}

// ClaimDailyIncome credits the fixed basic-income amount. The first claim on
// a fresh account always succeeds; afterwards claims within the cooldown
// window fail with ErrCooldownActive.
func (s *Service) ClaimDailyIncome(ctx context.Context, userID string) (domain.Transaction, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	acct, err := s.store.EnsureAccount(ctx, userID)
	if err != nil {
		return domain.Transaction{}, err
	}

	now := s.now().UTC()
	if !acct.LastIncomeClaimAt.IsZero() {
		if elapsed := now.Sub(acct.LastIncomeClaimAt); elapsed < domain.IncomeCooldown {
			return domain.Transaction{}, fmt.Errorf("%w: next claim in %s",
				ErrCooldownActive, (domain.IncomeCooldown - elapsed).Round(time.Second))
		}
	}

	acct.Spendable += domain.DailyIncome
	acct.LastIncomeClaimAt = now
	if _, err := s.store.PutAccount(ctx, acct); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.store.AppendTransaction(ctx, domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.KindIncomeClaim,
		Amount:    domain.DailyIncome,
		CreatedAt: now,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.RecordTransaction(string(domain.KindIncomeClaim))
	s.log.WithField("user_id", userID).
		WithField("amount", domain.DailyIncome.String()).
		Info("daily income claimed")
	return tx, nil
}

// SendPayment debits amount plus the payment fee from the sender. The
// counterparty address is recorded on the transaction but not credited;
// settlement happens outside the ledger.
func (s *Service) SendPayment(ctx context.Context, userID, counterparty string, amount domain.Cents) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, ErrInvalidAmount
	}
	if counterparty == "" {
		return domain.Transaction{}, fmt.Errorf("counterparty is required")
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	acct, err := s.store.EnsureAccount(ctx, userID)
	if err != nil {
		return domain.Transaction{}, err
	}

	fee := domain.PaymentFee(amount)
	total := amount + fee
	if total > acct.Spendable {
		return domain.Transaction{}, fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientFunds, total.String(), acct.Spendable.String())
	}

	acct.Spendable -= total
	if _, err := s.store.PutAccount(ctx, acct); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.store.AppendTransaction(ctx, domain.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         domain.KindPayment,
		Amount:       amount,
		Fee:          &fee,
		Counterparty: counterparty,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.RecordTransaction(string(domain.KindPayment))
	s.log.WithField("user_id", userID).
		WithField("counterparty", counterparty).
		WithField("amount", amount.String()).
		WithField("fee", fee.String()).
		Info("payment sent")
	return tx, nil
}

// Debit removes amount from the spendable balance and records a
// goal-contribution transaction. Used by the governance engine when a member
// funds a community goal; no fee applies.
func (s *Service) Debit(ctx context.Context, userID string, amount domain.Cents, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	acct, err := s.store.EnsureAccount(ctx, userID)
	if err != nil {
		return err
	}
	if amount > acct.Spendable {
		return fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientFunds, amount.String(), acct.Spendable.String())
	}

	acct.Spendable -= amount
	if _, err := s.store.PutAccount(ctx, acct); err != nil {
		return err
	}

	if _, err := s.store.AppendTransaction(ctx, domain.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         domain.KindGoalContribution,
		Amount:       amount,
		Counterparty: reference,
		CreatedAt:    s.now().UTC(),
	}); err != nil {
		return err
	}

	metrics.RecordTransaction(string(domain.KindGoalContribution))
	return nil
}

// GetBalance returns the account's balances with USD equivalents and the
// simple annual savings projection. Pure read.
func (s *Service) GetBalance(ctx context.Context, userID string) (domain.Balance, error) {
	acct, err := s.store.EnsureAccount(ctx, userID)
	if err != nil {
		return domain.Balance{}, err
	}

	return domain.Balance{
		UserID:                acct.UserID,
		Spendable:             acct.Spendable,
		SavingsPrincipal:      acct.SavingsPrincipal,
		SpendableUSD:          domain.USDEquivalent(acct.Spendable),
		SavingsUSD:            domain.USDEquivalent(acct.SavingsPrincipal),
		ProjectedAnnualReturn: domain.ProjectedAnnualReturn(acct.SavingsPrincipal),
	}, nil
}

// ListTransactions returns the account's log, most recent first.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

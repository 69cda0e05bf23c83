// Package savings moves spendable balance into interest-bearing principal.
// There is no accrual job; the annual return is a projection computed when a
// balance is read.
package savings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/metrics"
	ledgersvc "github.com/CommonsHub/community_layer/internal/app/services/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

// Service performs savings deposits against the shared ledger store. It must
// share its lock instance with the ledger service so account mutations from
// either side stay serialized.
type Service struct {
	store storage.LedgerStore
	locks *keymutex.KeyMutex
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a savings service.
func New(store storage.LedgerStore, locks *keymutex.KeyMutex, log *logger.Logger) *Service {
	if locks == nil {
		locks = keymutex.New()
	}
	if log == nil {
		log = logger.NewDefault("savings")
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

// Deposit atomically moves amount from the spendable balance into the
// savings principal. No intermediate state is observable: the debit and
// credit land in a single store write under the account's lock.
func (s *Service) Deposit(ctx context.Context, userID string, amount domain.Cents) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, ledgersvc.ErrInvalidAmount
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	acct, err := s.store.EnsureAccount(ctx, userID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if amount > acct.Spendable {
		return domain.Transaction{}, fmt.Errorf("%w: need %s, have %s",
			ledgersvc.ErrInsufficientFunds, amount.String(), acct.Spendable.String())
	}

	acct.Spendable -= amount
	acct.SavingsPrincipal += amount
	if _, err := s.store.PutAccount(ctx, acct); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.store.AppendTransaction(ctx, domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        domain.KindSavingsDeposit,
		Amount:      amount,
		RatePercent: domain.SavingsAPYPercent,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.RecordTransaction(string(domain.KindSavingsDeposit))
	s.log.WithField("user_id", userID).
		WithField("amount", amount.String()).
		WithField("principal", acct.SavingsPrincipal.String()).
		Info("savings deposit")
	return tx, nil
}

package savings

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	ledgersvc "github.com/CommonsHub/community_layer/internal/app/services/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage/memory"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
)

func newTestServices(t *testing.T) (*Service, *ledgersvc.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	locks := keymutex.New()
	return New(store, locks, nil), ledgersvc.New(store, locks, nil), store
}

func fund(t *testing.T, store *memory.Store, userID string, amount domain.Cents) {
	t.Helper()
	ctx := context.Background()
	acct, err := store.EnsureAccount(ctx, userID)
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	acct.Spendable = amount
	if _, err := store.PutAccount(ctx, acct); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func TestDepositMovesSpendableToPrincipal(t *testing.T) {
	svc, ledgerSvc, store := newTestServices(t)
	ctx := context.Background()

	fund(t, store, "alice", 5000)

	tx, err := svc.Deposit(ctx, "alice", 3000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if tx.Kind != domain.KindSavingsDeposit {
		t.Fatalf("unexpected kind %v", tx.Kind)
	}
	if tx.RatePercent != domain.SavingsAPYPercent {
		t.Fatalf("expected nominal rate on transaction, got %v", tx.RatePercent)
	}

	balance, err := ledgerSvc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != 2000 || balance.SavingsPrincipal != 3000 {
		t.Fatalf("expected 20.00 / 30.00 split, got %s / %s", balance.Spendable, balance.SavingsPrincipal)
	}
	// 5% of 30.00.
	if balance.ProjectedAnnualReturn != 150 {
		t.Fatalf("expected projection 1.50, got %s", balance.ProjectedAnnualReturn)
	}
}

func TestDepositInsufficientFunds(t *testing.T) {
	svc, ledgerSvc, store := newTestServices(t)
	ctx := context.Background()

	fund(t, store, "alice", 1000)

	_, err := svc.Deposit(ctx, "alice", 1001)
	if !errors.Is(err, ledgersvc.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, err := ledgerSvc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != 1000 || balance.SavingsPrincipal != 0 {
		t.Fatalf("failed deposit must not move funds, got %s / %s", balance.Spendable, balance.SavingsPrincipal)
	}
}

func TestDepositRejectsNonPositiveAmounts(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	for _, amount := range []domain.Cents{0, -100} {
		if _, err := svc.Deposit(ctx, "alice", amount); !errors.Is(err, ledgersvc.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %d, got %v", amount, err)
		}
	}
}

func TestConcurrentDepositsNeverOverdraw(t *testing.T) {
	svc, ledgerSvc, store := newTestServices(t)
	ctx := context.Background()

	fund(t, store, "alice", 1000)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Deposit(ctx, "alice", 300)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ledgersvc.ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 deposits of 3.00 from 10.00, got %d", succeeded)
	}

	balance, err := ledgerSvc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != 100 || balance.SavingsPrincipal != 900 {
		t.Fatalf("unexpected final split %s / %s", balance.Spendable, balance.SavingsPrincipal)
	}
	if balance.Spendable < 0 || balance.SavingsPrincipal < 0 {
		t.Fatal("balances must never go negative")
	}
}

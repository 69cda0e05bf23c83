package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, nil, nil), store
}

func fund(t *testing.T, svc *Service, store *memory.Store, userID string, amount domain.Cents) {
	t.Helper()
	ctx := context.Background()
	acct, err := svc.EnsureAccount(ctx, userID)
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	acct.Spendable = amount
	if _, err := store.PutAccount(ctx, acct); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func TestClaimDailyIncomeFirstClaimAlwaysSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, err := svc.ClaimDailyIncome(ctx, "alice")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if tx.Kind != domain.KindIncomeClaim || tx.Amount != domain.DailyIncome {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != domain.DailyIncome {
		t.Fatalf("expected spendable %s, got %s", domain.DailyIncome, balance.Spendable)
	}
}

func TestClaimDailyIncomeCooldown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	if _, err := svc.ClaimDailyIncome(ctx, "alice"); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	now = now.Add(23 * time.Hour)
	if _, err := svc.ClaimDailyIncome(ctx, "alice"); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := svc.ClaimDailyIncome(ctx, "alice"); err != nil {
		t.Fatalf("claim after cooldown: %v", err)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if want := 2 * domain.DailyIncome; balance.Spendable != want {
		t.Fatalf("expected spendable %s, got %s", want, balance.Spendable)
	}
}

func TestConcurrentClaimsCreditExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ClaimDailyIncome(ctx, "alice")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrCooldownActive) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", succeeded)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != domain.DailyIncome {
		t.Fatalf("expected spendable %s, got %s", domain.DailyIncome, balance.Spendable)
	}
}

func TestSendPaymentDebitsAmountPlusFee(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// 100.50 covers a 100.00 payment plus its 0.50 fee exactly.
	fund(t, svc, store, "alice", 10050)

	tx, err := svc.SendPayment(ctx, "alice", "community-fund", 10000)
	if err != nil {
		t.Fatalf("send payment: %v", err)
	}
	if tx.Fee == nil || *tx.Fee != 50 {
		t.Fatalf("expected fee 0.50, got %+v", tx.Fee)
	}
	if tx.Counterparty != "community-fund" {
		t.Fatalf("unexpected counterparty %q", tx.Counterparty)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != 0 {
		t.Fatalf("expected zero balance after exact spend, got %s", balance.Spendable)
	}
}

func TestSendPaymentInsufficientForFee(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// One cent short of amount plus fee.
	fund(t, svc, store, "alice", 10049)

	_, err := svc.SendPayment(ctx, "alice", "bob", 10000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Spendable != 10049 {
		t.Fatalf("failed payment must not change balance, got %s", balance.Spendable)
	}
}

func TestSendPaymentDoesNotCreditCounterparty(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	fund(t, svc, store, "alice", 10050)
	if _, err := svc.SendPayment(ctx, "alice", "bob", 10000); err != nil {
		t.Fatalf("send payment: %v", err)
	}

	bob, err := svc.GetBalance(ctx, "bob")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bob.Spendable != 0 {
		t.Fatalf("counterparty must not be credited, got %s", bob.Spendable)
	}
}

func TestSendPaymentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendPayment(ctx, "alice", "bob", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := svc.SendPayment(ctx, "alice", "bob", -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := svc.SendPayment(ctx, "alice", "", 100); err == nil {
		t.Fatal("expected error for missing counterparty")
	}
}

func TestDebitRecordsGoalContribution(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	fund(t, svc, store, "alice", 2000)
	if err := svc.Debit(ctx, "alice", 500, "goal:g1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := svc.Debit(ctx, "alice", 5000, "goal:g1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	txs, err := svc.ListTransactions(ctx, "alice")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Kind != domain.KindGoalContribution {
		t.Fatalf("expected one goal-contribution transaction, got %+v", txs)
	}
	if txs[0].Fee != nil {
		t.Fatal("goal contributions carry no fee")
	}
}

func TestGetBalanceDerivedFigures(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acct, err := svc.EnsureAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	acct.Spendable = 10000
	acct.SavingsPrincipal = 20000
	if _, err := store.PutAccount(ctx, acct); err != nil {
		t.Fatalf("put account: %v", err)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.SpendableUSD != 12.0 {
		t.Fatalf("expected 12 USD spendable, got %v", balance.SpendableUSD)
	}
	if balance.SavingsUSD != 24.0 {
		t.Fatalf("expected 24 USD savings, got %v", balance.SavingsUSD)
	}
	if balance.ProjectedAnnualReturn != 1000 {
		t.Fatalf("expected projection 10.00, got %s", balance.ProjectedAnnualReturn)
	}
}

func TestListTransactionsOrdering(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	fund(t, svc, store, "alice", 100000)
	if _, err := svc.ClaimDailyIncome(ctx, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.SendPayment(ctx, "alice", "bob", 1000); err != nil {
		t.Fatalf("payment: %v", err)
	}

	txs, err := svc.ListTransactions(ctx, "alice")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Kind != domain.KindPayment || txs[1].Kind != domain.KindIncomeClaim {
		t.Fatalf("expected most-recent-first ordering, got %v then %v", txs[0].Kind, txs[1].Kind)
	}
}

package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	govdomain "github.com/CommonsHub/community_layer/internal/app/domain/governance"
	governancesvc "github.com/CommonsHub/community_layer/internal/app/services/governance"
	ledgersvc "github.com/CommonsHub/community_layer/internal/app/services/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage/memory"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
)

func newTestService(t *testing.T) (*Service, *ledgersvc.Service, *governancesvc.Service) {
	t.Helper()
	store := memory.New()
	locks := keymutex.New()
	ledgerService := ledgersvc.New(store, locks, nil)
	governanceService := governancesvc.New(store, locks, nil)
	governanceService.WithQuorumSource(func() int { return 10 })
	governanceService.AttachLedger(ledgerService)
	return New(ledgerService, governanceService, nil), ledgerService, governanceService
}

func TestSnapshotComposesAllSections(t *testing.T) {
	svc, ledgerService, governanceService := newTestService(t)
	ctx := context.Background()

	if _, err := ledgerService.ClaimDailyIncome(ctx, "alice"); err != nil {
		t.Fatalf("claim income: %v", err)
	}
	p, err := governanceService.CreateProposal(ctx, "alice", "Bike lanes", "", "mobility", 0)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if _, err := governanceService.CastVote(ctx, p.ID, "alice", govdomain.VoteFor, ""); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	goal, err := governanceService.CreateGoal(ctx, "tool library", "", 10000, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, _, err := governanceService.ContributeToGoal(ctx, goal.ID, "alice", 200, false); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	svc.RegisterProvider(StaticProvider{SourceName: "identity-verification", Values: map[string]any{"verified_humans": 100}})

	snap, err := svc.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Balance.Spendable != 800 {
		t.Fatalf("expected spendable 8.00 after contribution, got %s", snap.Balance.Spendable)
	}
	if len(snap.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(snap.Transactions))
	}
	if len(snap.Proposals) != 1 || len(snap.Goals) != 1 {
		t.Fatalf("expected 1 proposal and 1 goal, got %d / %d", len(snap.Proposals), len(snap.Goals))
	}
	if snap.Participation.VotesCast != 1 || snap.Participation.ProposalsAuthored != 1 || snap.Participation.Contributions != 1 {
		t.Fatalf("unexpected participation %+v", snap.Participation)
	}
	if len(snap.Integrations) != 1 || snap.Integrations[0].Source != "identity-verification" {
		t.Fatalf("unexpected integrations %+v", snap.Integrations)
	}
	if snap.Integrations[0].Stale {
		t.Fatal("fresh section must not be stale")
	}
}

func TestSnapshotCapsRecentTransactions(t *testing.T) {
	svc, ledgerService, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	ledgerService.WithClock(func() time.Time { return now })
	for i := 0; i < recentTransactionLimit+5; i++ {
		if _, err := ledgerService.ClaimDailyIncome(ctx, "alice"); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		now = now.Add(25 * time.Hour)
	}

	snap, err := svc.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Transactions) != recentTransactionLimit {
		t.Fatalf("expected %d transactions, got %d", recentTransactionLimit, len(snap.Transactions))
	}
}

func TestFailingProviderDoesNotFailSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.RegisterProvider(StaticProvider{SourceName: "healthy", Values: map[string]any{"ok": true}})
	svc.RegisterProvider(ProviderFunc{
		SourceName: "broken",
		Func: func(context.Context) (map[string]any, error) {
			return nil, fmt.Errorf("connection refused")
		},
	})

	snap, err := svc.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Integrations) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(snap.Integrations))
	}

	bySource := map[string]bool{}
	for _, section := range snap.Integrations {
		bySource[section.Source] = section.Stale
	}
	if bySource["healthy"] {
		t.Fatal("healthy section marked stale")
	}
	if !bySource["broken"] {
		t.Fatal("broken section must be stale")
	}
}

func TestFailingProviderFallsBackToLastKnown(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	healthy := true
	svc.RegisterProvider(ProviderFunc{
		SourceName: "flaky",
		Func: func(context.Context) (map[string]any, error) {
			if healthy {
				return map[string]any{"members": 42}, nil
			}
			return nil, fmt.Errorf("timeout")
		},
	})

	first := svc.CollectStats(ctx)
	if len(first) != 1 || first[0].Stale {
		t.Fatalf("expected one fresh section, got %+v", first)
	}

	healthy = false
	second := svc.CollectStats(ctx)
	if len(second) != 1 {
		t.Fatalf("expected one section, got %d", len(second))
	}
	if !second[0].Stale {
		t.Fatal("expected stale fallback section")
	}
	if second[0].Values["members"] != 42 {
		t.Fatalf("expected last-known values, got %+v", second[0].Values)
	}
}

func TestProviderPlaceholderOnFirstFailure(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.RegisterProvider(ProviderFunc{
		SourceName: "neverworked",
		Func: func(context.Context) (map[string]any, error) {
			return nil, fmt.Errorf("boom")
		},
	})

	sections := svc.CollectStats(context.Background())
	if len(sections) != 1 {
		t.Fatalf("expected one section, got %d", len(sections))
	}
	if !sections[0].Stale || sections[0].Values["status"] != "unavailable" {
		t.Fatalf("expected placeholder section, got %+v", sections[0])
	}
}

func TestProviderTimeoutBounded(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithProviderTimeout(20 * time.Millisecond)

	svc.RegisterProvider(ProviderFunc{
		SourceName: "slow",
		Func: func(ctx context.Context) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			}
		},
	})

	start := time.Now()
	sections := svc.CollectStats(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fetch not bounded by timeout, took %s", elapsed)
	}
	if len(sections) != 1 || !sections[0].Stale {
		t.Fatalf("expected stale section from timed-out provider, got %+v", sections)
	}
}

func TestSimulatedProviderDeterministicWithSeed(t *testing.T) {
	base := map[string]float64{"members": 1000}
	a := NewSimulatedProvider("sim", base, 99, time.Millisecond)
	b := NewSimulatedProvider("sim", base, 99, time.Millisecond)

	ctx := context.Background()
	va, err := a.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch a: %v", err)
	}
	vb, err := b.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch b: %v", err)
	}
	if va["members"] != vb["members"] {
		t.Fatalf("same seed must give same values: %v vs %v", va["members"], vb["members"])
	}
	members := va["members"].(float64)
	if members < 900 || members > 1100 {
		t.Fatalf("jitter out of range: %v", members)
	}
}

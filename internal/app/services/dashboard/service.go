// Package dashboard assembles the read-only display snapshot: ledger
// balances, governance activity and statistics from the external protocol
// collaborators. It performs no writes.
package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	govdomain "github.com/CommonsHub/community_layer/internal/app/domain/governance"
	"github.com/CommonsHub/community_layer/internal/app/domain/integration"
	ledgerdomain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/metrics"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

// recentTransactionLimit caps the transaction list embedded in a snapshot.
const recentTransactionLimit = 10

// defaultProviderTimeout bounds each provider fetch during a snapshot.
const defaultProviderTimeout = 3 * time.Second

// StatsProvider is one external collaborator's read-only statistics feed.
type StatsProvider interface {
	Name() string
	Fetch(ctx context.Context) (map[string]any, error)
}

// LedgerReader is the slice of the ledger the dashboard reads.
type LedgerReader interface {
	GetBalance(ctx context.Context, userID string) (ledgerdomain.Balance, error)
	ListTransactions(ctx context.Context, userID string) ([]ledgerdomain.Transaction, error)
}

// GovernanceReader is the slice of the governance engine the dashboard reads.
type GovernanceReader interface {
	ListProposals(ctx context.Context) ([]govdomain.Proposal, error)
	ListGoals(ctx context.Context) ([]govdomain.GoalView, error)
	Participation(ctx context.Context, userID string) (govdomain.Participation, error)
}

// Snapshot is the composite view served to the dashboard UI.
type Snapshot struct {
	UserID        string
	GeneratedAt   time.Time
	Balance       ledgerdomain.Balance
	Transactions  []ledgerdomain.Transaction
	Proposals     []govdomain.Proposal
	Goals         []govdomain.GoalView
	Participation govdomain.Participation
	Integrations  []integration.Stats
}

// Service aggregates ledger, governance and provider data. Provider fetches
// fan out concurrently and a failing provider degrades to its last known
// values instead of failing the snapshot.
type Service struct {
	ledger  LedgerReader
	gov     GovernanceReader
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	providers []StatsProvider
	lastKnown map[string]integration.Stats
}

// New constructs a dashboard service.
func New(ledger LedgerReader, gov GovernanceReader, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dashboard")
	}
	return &Service{
		ledger:    ledger,
		gov:       gov,
		log:       log,
		timeout:   defaultProviderTimeout,
		now:       time.Now,
		lastKnown: make(map[string]integration.Stats),
	}
}

// WithProviderTimeout overrides the per-provider fetch deadline.
func (s *Service) WithProviderTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// RegisterProvider adds a collaborator feed. Snapshot sections appear in
// registration order.
func (s *Service) RegisterProvider(p StatsProvider) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.providers = append(s.providers, p)
	s.mu.Unlock()
}

// Snapshot assembles the full composite for one member. Any provider failure
// degrades that section only.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	snap := Snapshot{
		UserID:      userID,
		GeneratedAt: s.now().UTC(),
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Balance = balance

	txs, err := s.ledger.ListTransactions(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if len(txs) > recentTransactionLimit {
		txs = txs[:recentTransactionLimit]
	}
	snap.Transactions = txs

	proposals, err := s.gov.ListProposals(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Proposals = proposals

	goals, err := s.gov.ListGoals(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Goals = goals

	participation, err := s.gov.Participation(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Participation = participation

	snap.Integrations = s.CollectStats(ctx)
	return snap, nil
}

// CollectStats fetches every registered provider concurrently. Failures fall
// back to the last known section, or a placeholder when the provider has
// never succeeded. Results are ordered by source name.
func (s *Service) CollectStats(ctx context.Context) []integration.Stats {
	s.mu.RLock()
	providers := make([]StatsProvider, len(s.providers))
	copy(providers, s.providers)
	s.mu.RUnlock()

	if len(providers) == 0 {
		return nil
	}

	results := make([]integration.Stats, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.fetchOne(gctx, p)
			return nil
		})
	}
	// Workers only report into their own slot.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	return results
}

func (s *Service) fetchOne(ctx context.Context, p StatsProvider) integration.Stats {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := p.Name()
	values, err := p.Fetch(fetchCtx)
	metrics.RecordProviderRefresh(name, err == nil)
	if err != nil {
		s.log.WithError(err).WithField("provider", name).Warn("stats fetch failed")
		return s.fallback(name)
	}

	stats := integration.Stats{
		Source:      name,
		CollectedAt: s.now().UTC(),
		Values:      values,
	}
	s.mu.Lock()
	s.lastKnown[name] = stats
	s.mu.Unlock()
	return stats
}

// fallback serves the last good section marked stale, or a placeholder when
// the provider has never succeeded.
func (s *Service) fallback(name string) integration.Stats {
	s.mu.RLock()
	cached, ok := s.lastKnown[name]
	s.mu.RUnlock()
	if ok {
		cached.Stale = true
		return cached
	}
	return integration.Stats{
		Source:      name,
		CollectedAt: s.now().UTC(),
		Values:      map[string]any{"status": "unavailable"},
		Stale:       true,
	}
}

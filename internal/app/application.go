package app

import (
	"context"
	"fmt"

	dashboardsvc "github.com/CommonsHub/community_layer/internal/app/services/dashboard"
	governancesvc "github.com/CommonsHub/community_layer/internal/app/services/governance"
	"github.com/CommonsHub/community_layer/internal/app/services/identity"
	ledgersvc "github.com/CommonsHub/community_layer/internal/app/services/ledger"
	savingssvc "github.com/CommonsHub/community_layer/internal/app/services/savings"
	"github.com/CommonsHub/community_layer/internal/app/storage"
	"github.com/CommonsHub/community_layer/internal/app/storage/memory"
	"github.com/CommonsHub/community_layer/internal/app/system"
	"github.com/CommonsHub/community_layer/pkg/keymutex"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Ledger     storage.LedgerStore
	Governance storage.GovernanceStore
}

// Options tunes optional collaborators. The zero value is a working setup
// with no identity gating and no refresher.
type Options struct {
	// Verifier, when set, gates proposal creation and voting on identity.
	Verifier identity.Verifier

	// RefreshSchedule, when set, starts a background provider refresher on
	// the given cron descriptor (for example "@every 1m").
	RefreshSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Ledger     *ledgersvc.Service
	Savings    *savingssvc.Service
	Governance *governancesvc.Service
	Dashboard  *dashboardsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Governance == nil {
		stores.Governance = mem
	}

	manager := system.NewManager(log)

	// One lock set shared by every service that mutates accounts, so a
	// savings deposit and a payment on the same account serialize.
	locks := keymutex.New()

	ledgerService := ledgersvc.New(stores.Ledger, locks, log)
	savingsService := savingssvc.New(stores.Ledger, locks, log)
	governanceService := governancesvc.New(stores.Governance, locks, log)
	governanceService.AttachLedger(ledgerService)
	if opts.Verifier != nil {
		governanceService.AttachVerifier(opts.Verifier)
	}

	dashboardService := dashboardsvc.New(ledgerService, governanceService, log)

	for _, name := range []string{"ledger", "savings", "governance"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if opts.RefreshSchedule != "" {
		refresher, err := dashboardsvc.NewRefresher(dashboardService, opts.RefreshSchedule, log)
		if err != nil {
			return nil, fmt.Errorf("configure dashboard refresher: %w", err)
		}
		if err := manager.Register(refresher); err != nil {
			return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Ledger:     ledgerService,
		Savings:    savingsService,
		Governance: governanceService,
		Dashboard:  dashboardService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

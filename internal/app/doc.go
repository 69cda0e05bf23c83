// Package app provides the application composition layer.
//
// # Architecture Role
//
// The app package composes the domain services into a running application.
// It is NOT a business logic layer - business logic belongs in
// internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── ledger/         # Accounts, transactions, money
//	│   ├── governance/     # Proposals, votes, goals
//	│   ├── integration/    # External collaborator statistics
//	│   └── identity/       # Identity verification results
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (LedgerStore, GovernanceStore)
//	│   └── memory/         # In-memory implementation (the only one)
//	├── services/           # Business logic services
//	│   ├── ledger/         # Income claims, payments, balances
//	│   ├── savings/        # Deposits into savings principal
//	│   ├── governance/     # Proposals, voting, community goals
//	│   ├── identity/       # Identity verification collaborator
//	│   └── dashboard/      # Read-only snapshot aggregation
//	├── httpapi/            # HTTP handlers, routing and middleware
//	├── system/             # Lifecycle management (Service, Manager)
//	└── metrics/            # Prometheus registry and collectors
//
// # Dependency Direction
//
//	cmd/communityd/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/storage/ (persistence interfaces)
//	      │
//	      └──► internal/app/httpapi/ (transport)
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "grants"):
//
//  1. Create domain models in internal/app/domain/grants/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/memory/
//  4. Create the service in internal/app/services/grants/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app

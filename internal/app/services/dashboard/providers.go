package dashboard

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// ProviderFunc adapts a named function to the StatsProvider interface.
type ProviderFunc struct {
	SourceName string
	Func       func(ctx context.Context) (map[string]any, error)
}

func (p ProviderFunc) Name() string { return p.SourceName }

func (p ProviderFunc) Fetch(ctx context.Context) (map[string]any, error) {
	if p.Func == nil {
		return map[string]any{}, nil
	}
	return p.Func(ctx)
}

// StaticProvider returns the same values on every fetch. Intended for tests
// and local development.
type StaticProvider struct {
	SourceName string
	Values     map[string]any
}

func (p StaticProvider) Name() string { return p.SourceName }

func (p StaticProvider) Fetch(_ context.Context) (map[string]any, error) {
	out := make(map[string]any, len(p.Values))
	for k, v := range p.Values {
		out[k] = v
	}
	return out, nil
}

// SimulatedProvider stands in for a real protocol collaborator: a brief wait
// followed by figures jittered around a fixed baseline. Seeded for
// reproducibility.
type SimulatedProvider struct {
	name    string
	base    map[string]float64
	latency time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSimulatedProvider creates a provider jittering ±10% around base values.
func NewSimulatedProvider(name string, base map[string]float64, seed int64, latency time.Duration) *SimulatedProvider {
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	return &SimulatedProvider{
		name:    name,
		base:    base,
		latency: latency,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

func (p *SimulatedProvider) Name() string { return p.name }

func (p *SimulatedProvider) Fetch(ctx context.Context) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.latency):
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	values := make(map[string]any, len(p.base)+1)
	for key, base := range p.base {
		jitter := 1 + (p.rand.Float64()-0.5)*0.2
		values[key] = base * jitter
	}
	values["status"] = "ok"
	return values, nil
}

// DemoProviders returns the three simulated collaborators the demo platform
// ships with: identity verification, privacy network and edge infrastructure.
func DemoProviders(seed int64) []StatsProvider {
	return []StatsProvider{
		NewSimulatedProvider("identity-verification", map[string]float64{
			"verified_humans":   2_400_000,
			"verifications_24h": 18_500,
			"avg_uniqueness":    0.87,
		}, seed, 120*time.Millisecond),
		NewSimulatedProvider("privacy-network", map[string]float64{
			"active_relays":  6_200,
			"circuits_open":  48_000,
			"bandwidth_gbps": 310,
		}, seed+1, 150*time.Millisecond),
		NewSimulatedProvider("edge-infrastructure", map[string]float64{
			"nodes_online":     1_150,
			"regions":          34,
			"requests_per_sec": 92_000,
		}, seed+2, 90*time.Millisecond),
	}
}

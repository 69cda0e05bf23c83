// Package identity provides the identity-verification collaborator used to
// gate governance eligibility. The real network behind it is out of scope;
// implementations here simulate or pin its behavior.
package identity

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domain "github.com/CommonsHub/community_layer/internal/app/domain/identity"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

// Verifier checks that a member holds a verified, unique identity.
type Verifier interface {
	Verify(ctx context.Context, userID string) (domain.Verification, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, userID string) (domain.Verification, error)

func (f VerifierFunc) Verify(ctx context.Context, userID string) (domain.Verification, error) {
	if f == nil {
		return domain.Verification{}, nil
	}
	return f(ctx, userID)
}

// StaticVerifier returns the same answer for every member. Intended for
// tests and local development.
type StaticVerifier struct {
	Verified bool
	Score    float64
}

func (v StaticVerifier) Verify(_ context.Context, userID string) (domain.Verification, error) {
	return domain.Verification{
		UserID:          userID,
		Verified:        v.Verified,
		UniquenessScore: v.Score,
		CheckedAt:       time.Now().UTC(),
	}, nil
}

// SimulatedVerifier mimics the demo identity network: a brief wait followed
// by a randomized uniqueness score. Results are cached per member so repeated
// checks stay consistent within one process lifetime.
type SimulatedVerifier struct {
	mu      sync.Mutex
	rand    *rand.Rand
	latency time.Duration
	cache   map[string]domain.Verification
	log     *logger.Logger
}

// NewSimulatedVerifier creates a verifier seeded for reproducibility.
func NewSimulatedVerifier(seed int64, latency time.Duration, log *logger.Logger) *SimulatedVerifier {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	if latency <= 0 {
		latency = 50 * time.Millisecond
	}
	return &SimulatedVerifier{
		rand:    rand.New(rand.NewSource(seed)),
		latency: latency,
		cache:   make(map[string]domain.Verification),
		log:     log,
	}
}

func (v *SimulatedVerifier) Verify(ctx context.Context, userID string) (domain.Verification, error) {
	select {
	case <-ctx.Done():
		return domain.Verification{}, ctx.Err()
	case <-time.After(v.latency):
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[userID]; ok {
		return cached, nil
	}

	score := 0.6 + v.rand.Float64()*0.4
	result := domain.Verification{
		UserID:          userID,
		Verified:        score >= 0.7,
		UniquenessScore: score,
		CheckedAt:       time.Now().UTC(),
	}
	v.cache[userID] = result
	return result, nil
}

package identity

import (
	"context"
	"testing"
	"time"
)

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{Verified: true, Score: 0.9}
	result, err := v.Verify(context.Background(), "alice")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Verified || result.UniquenessScore != 0.9 || result.UserID != "alice" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSimulatedVerifierIsConsistentPerUser(t *testing.T) {
	v := NewSimulatedVerifier(7, time.Millisecond, nil)
	ctx := context.Background()

	first, err := v.Verify(ctx, "alice")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	second, err := v.Verify(ctx, "alice")
	if err != nil {
		t.Fatalf("verify again: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached result, got %+v then %+v", first, second)
	}
	if first.UniquenessScore < 0.6 || first.UniquenessScore > 1.0 {
		t.Fatalf("score out of range: %v", first.UniquenessScore)
	}
}

func TestSimulatedVerifierHonorsContext(t *testing.T) {
	v := NewSimulatedVerifier(7, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := v.Verify(ctx, "alice"); err == nil {
		t.Fatal("expected context error")
	}
}

package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProviderExtractsConfiguredFields(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"network":{"relays":6200,"status":"ok"},"ignored":true}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider("privacy-network", server.Client(), server.URL, "secret-key", map[string]string{
		"relays": "network.relays",
		"status": "network.status",
	}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	values, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if values["relays"] != float64(6200) {
		t.Fatalf("expected relays 6200, got %v", values["relays"])
	}
	if values["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", values["status"])
	}
	if _, present := values["ignored"]; present {
		t.Fatal("unconfigured fields must not leak through")
	}
}

func TestHTTPProviderRawObjectWithoutFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":12,"region":"eu"}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider("edge", server.Client(), server.URL, "", nil, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	values, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if values["nodes"] != float64(12) || values["region"] != "eu" {
		t.Fatalf("unexpected values %+v", values)
	}
}

func TestHTTPProviderSkipsMissingPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"present":1}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider("partial", server.Client(), server.URL, "", map[string]string{
		"present": "present",
		"absent":  "deeply.nested.path",
	}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	values, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if values["present"] != float64(1) {
		t.Fatalf("expected present field, got %+v", values)
	}
	if _, ok := values["absent"]; ok {
		t.Fatal("missing path must be skipped, not zero-filled")
	}
}

func TestHTTPProviderErrors(t *testing.T) {
	if _, err := NewHTTPProvider("x", nil, "  ", "", nil, nil); err == nil {
		t.Fatal("expected error for empty endpoint")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewHTTPProvider("down", server.Client(), server.URL, "", nil, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer bad.Close()

	provider, err = NewHTTPProvider("garbled", bad.Client(), bad.URL, "", nil, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

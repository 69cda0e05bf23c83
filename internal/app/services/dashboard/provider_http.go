package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CommonsHub/community_layer/pkg/logger"
)

// HTTPProvider fetches collaborator statistics from a JSON endpoint. When
// field paths are configured only those are extracted; otherwise the whole
// top-level object is used.
type HTTPProvider struct {
	name     string
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	fields   map[string]string
	log      *logger.Logger
}

// NewHTTPProvider constructs a provider for the given endpoint. fields maps
// output keys to gjson paths into the response body; nil keeps the raw
// object.
func NewHTTPProvider(name string, client *http.Client, endpoint, apiKey string, fields map[string]string, log *logger.Logger) (*HTTPProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("provider endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse provider endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("dashboard-http-provider")
	}
	return &HTTPProvider{
		name:     name,
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		fields:   fields,
		log:      log,
	}, nil
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("provider returned invalid JSON")
	}

	if len(p.fields) > 0 {
		values := make(map[string]any, len(p.fields))
		for key, path := range p.fields {
			result := gjson.GetBytes(body, path)
			if !result.Exists() {
				p.log.WithField("provider", p.name).
					WithField("path", path).
					Warn("provider field missing")
				continue
			}
			values[key] = result.Value()
		}
		return values, nil
	}

	var values map[string]any
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return values, nil
}

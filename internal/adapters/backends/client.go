// Package backends implements ports.SearchBackend for remote geocoding
// services.
package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "bilbopass-geocoder/1.0"
	maxErrorBody     = 512
)

// New builds the SearchBackend described by cfg.
func New(cfg config.BackendConfig, logger *slog.Logger) (ports.SearchBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := newHTTPBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.BackendPelias:
		return &Pelias{httpBackend: base}, nil
	case config.BackendHERE:
		return &HERE{httpBackend: base}, nil
	case config.BackendNominatim:
		return &Nominatim{httpBackend: base}, nil
	}
	return nil, &domain.ConfigurationError{
		Problems: []string{fmt.Sprintf("backend %q: unknown type %q", cfg.DisplayName(), cfg.Type)},
	}
}

// httpBackend holds what every HTTP search backend shares.
type httpBackend struct {
	name       string
	baseURL    string
	apiKey     string
	language   string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

func newHTTPBackend(cfg config.BackendConfig, logger *slog.Logger) (httpBackend, error) {
	if cfg.URL == "" {
		return httpBackend{}, &domain.ConfigurationError{
			Problems: []string{fmt.Sprintf("backend %q: url is required", cfg.DisplayName())},
		}
	}
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return httpBackend{
		name:       cfg.DisplayName(),
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		userAgent:  ua,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "backend", "backend", cfg.DisplayName()),
	}, nil
}

func (b *httpBackend) Name() string { return b.name }

// endpoint joins the base URL with path and attaches params.
func (b *httpBackend) endpoint(base, path string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	u = u.JoinPath(path)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// get performs a GET request and returns the body of a 200 response.
func (b *httpBackend) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", b.userAgent)
	if b.language != "" {
		req.Header.Set("Accept-Language", b.language)
	}

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	b.logger.DebugContext(ctx, "backend request",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// getJSON fetches rawURL and decodes the response into out.
func (b *httpBackend) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := b.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is returned when a backend answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch returned status %d: %s", e.StatusCode, e.Body)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func size(q domain.GeocoderQuery) int {
	if q.Size > 0 {
		return q.Size
	}
	return 4
}

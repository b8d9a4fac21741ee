// Package gateway is the thin client for the upstream screening data
// provider. It owns request construction, response decoding, and the mapping
// of transport outcomes onto the screening error taxonomy; everything
// downstream of the candidate list lives in the matcher and orchestrator.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/platform/config"
	"vigil/internal/screening/models"
	dErrors "vigil/pkg/domain-errors"
)

const tracerName = "vigil/internal/screening/gateway"

// searchRequest is the provider query payload.
type searchRequest struct {
	Schema     string   `json:"schema"`
	Names      []string `json:"names"`
	BirthDates []string `json:"birth_dates,omitempty"`
	Countries  []string `json:"countries,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// searchResponse is the provider result envelope.
type searchResponse struct {
	Results []candidateRecord `json:"results"`
}

// candidateRecord is one provider entity. Fields the provider omits decode to
// their zero values; a record without an id is still usable (it just cannot
// be reconciled across runs).
type candidateRecord struct {
	ID         string   `json:"id"`
	Caption    string   `json:"caption"`
	Names      []string `json:"names"`
	BirthDates []string `json:"birth_dates"`
	Countries  []string `json:"countries"`
	Topics     []string `json:"topics"`
	Position   string   `json:"position"`
	Dataset    string   `json:"dataset"`
	Version    string   `json:"version"`
}

// Client calls the screening provider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a logger for decode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a provider client. A missing API key is not a construction
// error: it surfaces as a configuration failure per call so the process can
// still start and serve health/metrics.
func New(cfg config.ProviderConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search screens one identity and returns the raw candidate list.
//
// Failure classification follows the screening taxonomy: a missing API key is
// a non-retryable configuration failure; timeouts, transport errors, non-2xx
// statuses, and malformed response bodies are retryable transport failures.
func (c *Client) Search(ctx context.Context, query models.IdentityQuery) ([]models.Candidate, error) {
	ctx, span := c.tracer.Start(ctx, "provider.search",
		trace.WithAttributes(attribute.String("entity.kind", string(query.Kind))))
	defer span.End()

	if c.apiKey == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "screening provider API key is not configured")
	}

	body, err := json.Marshal(buildRequest(query))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "provider call timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "provider rejected credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "provider returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read provider response")
	}

	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed provider response")
	}

	candidates := make([]models.Candidate, 0, len(decoded.Results))
	for _, record := range decoded.Results {
		candidate, err := record.toCandidate()
		if err != nil {
			// One bad record must not sink the run; skip it loudly.
			if c.logger != nil {
				c.logger.WarnContext(ctx, "skipping malformed candidate record",
					"entity_id", record.ID, "error", err)
			}
			continue
		}
		candidates = append(candidates, candidate)
	}

	span.SetAttributes(attribute.Int("provider.candidates", len(candidates)))
	return candidates, nil
}

func buildRequest(query models.IdentityQuery) searchRequest {
	schema := "person"
	if query.Kind == models.EntityOrganization {
		schema = "organization"
	}
	req := searchRequest{
		Schema: schema,
		Names:  []string{query.Name},
	}
	if query.BirthDate != nil {
		req.BirthDates = []string{query.BirthDate.Format("2006-01-02")}
	}
	if query.Country != "" {
		req.Countries = []string{query.Country}
	}
	return req
}

func (r candidateRecord) toCandidate() (models.Candidate, error) {
	names := r.Names
	if len(names) == 0 && r.Caption != "" {
		names = []string{r.Caption}
	}
	if len(names) == 0 {
		return models.Candidate{}, fmt.Errorf("candidate record has no names")
	}

	birthDates := make([]time.Time, 0, len(r.BirthDates))
	for _, raw := range r.BirthDates {
		parsed, err := parseBirthDate(raw)
		if err != nil {
			// Drop the unparseable value, keep the record.
			continue
		}
		birthDates = append(birthDates, parsed)
	}

	return models.Candidate{
		EntityID:    r.ID,
		Names:       names,
		BirthDates:  birthDates,
		Countries:   r.Countries,
		Topics:      r.Topics,
		Position:    r.Position,
		Dataset:     r.Dataset,
		ListVersion: r.Version,
	}, nil
}

func parseBirthDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable birth date %q", raw)
}

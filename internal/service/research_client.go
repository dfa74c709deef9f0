package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jjenkins/laborwatch/internal/model"
)

const (
	researchMaxRetries     = 3
	researchInitialBackoff = 2 * time.Second
)

// ResearchUnavailableError wraps failures of the external research
// capability. It ends the current check (or fails the current batch target)
// but never aborts a whole batch.
type ResearchUnavailableError struct {
	Err error
}

func (e *ResearchUnavailableError) Error() string {
	return fmt.Sprintf("research capability unavailable: %v", e.Err)
}

func (e *ResearchUnavailableError) Unwrap() error { return e.Err }

// Researcher is the opaque research capability the coordinator calls. The
// discovery technique behind it is not this package's concern.
type Researcher interface {
	// DiscoverRequirements researches current compliance requirements for
	// a jurisdiction.
	DiscoverRequirements(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error)
	// DiscoverLegislation researches pending regulatory changes for a
	// jurisdiction.
	DiscoverLegislation(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error)
	// Reverify re-runs research for a single fact whose confidence fell
	// below the gate threshold.
	Reverify(ctx context.Context, j *model.Jurisdiction, fact model.DiscoveredFact) (model.DiscoveredFact, error)
}

// ResearchClient talks to the research API over HTTP. The API is treated as
// rate-limited and expensive: requests pass through a shared limiter and
// retry with exponential backoff on transient failures.
type ResearchClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewResearchClient creates a research API client. requestsPerSecond bounds
// the call rate across all runs sharing this client.
func NewResearchClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *ResearchClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &ResearchClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// researchRequest is the wire form of one research call
type researchRequest struct {
	City   string `json:"city"`
	State  string `json:"state"`
	County string `json:"county,omitempty"`
	Level  string `json:"level"`
}

// reverifyRequest adds the fact under re-verification
type reverifyRequest struct {
	researchRequest
	Category string `json:"category"`
	Title    string `json:"title"`
}

type factsResponse struct {
	Facts []model.DiscoveredFact `json:"facts"`
}

// DiscoverRequirements retrieves current compliance facts for a jurisdiction
func (c *ResearchClient) DiscoverRequirements(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error) {
	return c.discover(ctx, "/research", j)
}

// DiscoverLegislation retrieves pending regulatory changes for a jurisdiction
func (c *ResearchClient) DiscoverLegislation(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error) {
	return c.discover(ctx, "/legislation", j)
}

func (c *ResearchClient) discover(ctx context.Context, path string, j *model.Jurisdiction) ([]model.DiscoveredFact, error) {
	req := researchRequest{
		City:  j.City,
		State: j.State,
		Level: string(j.Level),
	}
	if j.County.Valid {
		req.County = j.County.String
	}

	body, err := c.postWithRetry(ctx, c.baseURL+path, req)
	if err != nil {
		return nil, &ResearchUnavailableError{Err: err}
	}

	var resp factsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResearchUnavailableError{Err: fmt.Errorf("failed to parse research response: %w", err)}
	}

	return resp.Facts, nil
}

// Reverify re-researches a single fact. On success the returned fact replaces
// the original for gating.
func (c *ResearchClient) Reverify(ctx context.Context, j *model.Jurisdiction, fact model.DiscoveredFact) (model.DiscoveredFact, error) {
	req := reverifyRequest{
		researchRequest: researchRequest{
			City:  j.City,
			State: j.State,
			Level: string(j.Level),
		},
		Category: fact.Category,
		Title:    fact.Title,
	}
	if j.County.Valid {
		req.County = j.County.String
	}

	body, err := c.postWithRetry(ctx, c.baseURL+"/verify", req)
	if err != nil {
		return fact, &ResearchUnavailableError{Err: err}
	}

	var verified model.DiscoveredFact
	if err := json.Unmarshal(body, &verified); err != nil {
		return fact, &ResearchUnavailableError{Err: fmt.Errorf("failed to parse verify response: %w", err)}
	}

	return verified, nil
}

// postWithRetry performs an HTTP POST with rate limiting and exponential
// backoff on transient failures
func (c *ResearchClient) postWithRetry(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	backoff := researchInitialBackoff

	for attempt := 0; attempt < researchMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", researchMaxRetries, lastErr)
}

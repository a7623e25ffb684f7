package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsar-neuron/gate/internal/model"
)

// RemoteAgent proposes via an HTTP bridge (typically an LLM planner).
// Calls are rate-limited client-side, retried on retryable statuses,
// and bounded by the caller's context deadline.
type RemoteAgent struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries   int
	retryBackoff time.Duration
}

// RemoteOption configures a RemoteAgent.
type RemoteOption func(*RemoteAgent)

// NewRemoteAgent creates a remote proposal agent.
func NewRemoteAgent(baseURL, apiKey string, opts ...RemoteOption) *RemoteAgent {
	a := &RemoteAgent{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger:       slog.Default(),
		limiter:      rate.NewLimiter(rate.Every(2*time.Second), 1),
		maxRetries:   2,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(a *RemoteAgent) {
		a.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) RemoteOption {
	return func(a *RemoteAgent) {
		a.maxRetries = max
		a.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(a *RemoteAgent) {
		a.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(a *RemoteAgent) {
		a.httpClient = hc
	}
}

// WithRatePerMinute caps outbound proposal calls.
func WithRatePerMinute(n int) RemoteOption {
	return func(a *RemoteAgent) {
		if n > 0 {
			a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// proposeRequest is the wire request to the planner bridge.
type proposeRequest struct {
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"ts"`
	Hints     model.ContextHints `json:"hints"`
	Prompt    string             `json:"prompt"`
}

// Propose sends the pack's hints to the bridge and parses the returned
// candidate. Every failure path wraps ErrUnavailable.
func (a *RemoteAgent) Propose(ctx context.Context, pack model.ContextPack) (model.Proposal, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return model.Proposal{}, fmt.Errorf("%w: rate limit wait: %v", ErrUnavailable, err)
	}

	reqBody, err := json.Marshal(proposeRequest{
		Symbol:    pack.Symbol,
		Timestamp: pack.Timestamp,
		Hints:     pack.Payload.Hints,
		Prompt:    BuildPrompt(pack),
	})
	if err != nil {
		return model.Proposal{}, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	body, err := a.doWithRetry(ctx, reqBody)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var prop model.Proposal
	if err := json.Unmarshal(body, &prop); err != nil {
		return model.Proposal{}, fmt.Errorf("%w: unmarshal proposal: %v", ErrUnavailable, err)
	}
	if !prop.Action.Valid() {
		return model.Proposal{}, fmt.Errorf("%w: unknown action %q", ErrUnavailable, prop.Action)
	}
	if prop.Confidence < 0 {
		prop.Confidence = 0
	}
	if prop.Confidence > 100 {
		prop.Confidence = 100
	}
	return prop, nil
}

// doWithRetry posts the request with exponential backoff retry.
func (a *RemoteAgent) doWithRetry(ctx context.Context, reqBody []byte) ([]byte, error) {
	var lastErr error
	backoff := a.retryBackoff

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			a.logger.Debug("retrying proposal request",
				"attempt", attempt,
				"backoff", jitter,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := a.doRequest(ctx, reqBody)
		if err == nil {
			return body, nil
		}

		lastErr = err

		bridgeErr, ok := err.(*BridgeError)
		if !ok || !bridgeErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (a *RemoteAgent) doRequest(ctx context.Context, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/propose", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &BridgeError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// BridgeError represents an error from the planner bridge.
type BridgeError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("planner bridge error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *BridgeError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// Package extractor provides a client for the remote roster-extraction
// function: a single POST endpoint with two phases (question generation
// and answer-guided shift filtering) plus a legacy single-phase mode.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shiftbook/rosterscan/internal/model"
)

// TokenSource hands out bearer tokens for the extraction function.
// Implementations must coalesce concurrent refreshes.
type TokenSource interface {
	// Token returns a usable token, refreshing first when forceRefresh is
	// true. An error means authentication is required, not a retryable
	// local failure.
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Client defines the remote extraction operations used by the pipeline.
type Client interface {
	// Phase1 sends the roster image and returns OCR data plus clarifying
	// questions.
	Phase1(ctx context.Context, imageBase64 string) (*Phase1Result, error)
	// Phase2 sends the untouched OCR data back with the user's answers and
	// returns the filtered shifts.
	Phase2(ctx context.Context, ocr *model.OcrResult, answers []model.QuestionAnswer,
		jobConfigs []model.JobConfig, aliases []model.JobAlias) (*Phase2Result, error)
	// ExtractLegacy is the single-phase entry point: image in, shifts out.
	ExtractLegacy(ctx context.Context, imageBase64 string,
		jobConfigs []model.JobConfig, aliases []model.JobAlias, identifier string) (*Phase2Result, error)
}

// Phase1Result is the parsed question-generation response.
type Phase1Result struct {
	Success          bool                  `json:"success"`
	Questions        []model.SmartQuestion `json:"questions"`
	OCRData          *model.OcrResult      `json:"ocrData"`
	SkipToExtraction bool                  `json:"skipToExtraction,omitempty"`
	ScansUsed        *int                  `json:"scansUsed,omitempty"`
	ScanLimit        *int                  `json:"scanLimit,omitempty"`
}

// SkipQuestions reports whether the controller may go straight to the
// filter phase with an empty answer set. An explicit skip signal and an
// empty question list both qualify.
func (r *Phase1Result) SkipQuestions() bool {
	return r.SkipToExtraction || len(r.Questions) == 0
}

// Phase2Result is the parsed shift-filtering response.
type Phase2Result struct {
	Success          bool                    `json:"success"`
	Shifts           []model.ParsedShift     `json:"shifts"`
	IdentifiedPerson *model.IdentifiedPerson `json:"identifiedPerson,omitempty"`
	ProcessingTimeMs int64                   `json:"processingTimeMs,omitempty"`
}

// Option configures the extractor client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryDelay overrides the fixed delay before an auth retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithMaxAuthRetries overrides the number of auth retries after the first
// attempt.
func WithMaxAuthRetries(n int) Option {
	return func(c *httpClient) {
		if n >= 0 {
			c.maxAuthRetries = n
		}
	}
}

// WithRateLimit sets a per-second rate limit on extraction calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	functionURL    string
	anonKey        string
	tokens         TokenSource
	http           *http.Client
	limiter        *rate.Limiter
	retryDelay     time.Duration
	maxAuthRetries int
}

// NewClient creates an extraction client for the given function URL.
func NewClient(functionURL, anonKey string, tokens TokenSource, opts ...Option) Client {
	c := &httpClient{
		functionURL:    functionURL,
		anonKey:        anonKey,
		tokens:         tokens,
		retryDelay:     500 * time.Millisecond,
		maxAuthRetries: 2,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type phase1Request struct {
	Phase       string `json:"phase"`
	ImageBase64 string `json:"imageBase64"`
}

type phase2Request struct {
	Phase      string                 `json:"phase"`
	OCRData    *model.OcrResult       `json:"ocrData"`
	Answers    []model.QuestionAnswer `json:"answers"`
	JobConfigs []wireJobConfig        `json:"jobConfigs"`
	JobAliases []model.JobAlias       `json:"jobAliases"`
}

type legacyRequest struct {
	ImageBase64 string           `json:"imageBase64"`
	JobConfigs  []wireJobConfig  `json:"jobConfigs"`
	JobAliases  []model.JobAlias `json:"jobAliases"`
	Identifier  string           `json:"identifier,omitempty"`
}

// wireJobConfig is the trimmed job shape the function expects.
type wireJobConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toWireJobs(jobs []model.JobConfig) []wireJobConfig {
	out := make([]wireJobConfig, len(jobs))
	for i, j := range jobs {
		out[i] = wireJobConfig{ID: j.ID, Name: j.Name}
	}
	return out
}

func (c *httpClient) Phase1(ctx context.Context, imageBase64 string) (*Phase1Result, error) {
	var result Phase1Result
	if err := c.call(ctx, phase1Request{Phase: "questions", ImageBase64: imageBase64}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) Phase2(ctx context.Context, ocr *model.OcrResult, answers []model.QuestionAnswer,
	jobConfigs []model.JobConfig, aliases []model.JobAlias) (*Phase2Result, error) {
	if answers == nil {
		answers = []model.QuestionAnswer{}
	}
	if aliases == nil {
		aliases = []model.JobAlias{}
	}
	req := phase2Request{
		Phase:      "filter",
		OCRData:    ocr,
		Answers:    answers,
		JobConfigs: toWireJobs(jobConfigs),
		JobAliases: aliases,
	}
	var result Phase2Result
	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) ExtractLegacy(ctx context.Context, imageBase64 string,
	jobConfigs []model.JobConfig, aliases []model.JobAlias, identifier string) (*Phase2Result, error) {
	if aliases == nil {
		aliases = []model.JobAlias{}
	}
	req := legacyRequest{
		ImageBase64: imageBase64,
		JobConfigs:  toWireJobs(jobConfigs),
		JobAliases:  aliases,
		Identifier:  identifier,
	}
	var result Phase2Result
	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call runs one request through the auth-retry protocol: obtain a token
// (non-forced), POST, and on 401/403 wait the fixed delay, force a refresh,
// and retry with the new token. Any other status ends the loop immediately.
func (c *httpClient) call(ctx context.Context, payload any, out any) error {
	if c.functionURL == "" {
		return faultf(model.ErrKindConfig, "extraction function URL is not configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return faultf(model.ErrKindNetwork, "rate limit wait: %v", err)
		}
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "extractor: marshal request")
	}

	force := false
	attempts := c.maxAuthRetries + 1
	var lastFault *Fault
	for attempt := 0; attempt < attempts; attempt++ {
		token, err := c.tokens.Token(ctx, force)
		if err != nil {
			// A cancelled scan is not a sign-in problem.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return faultf(model.ErrKindNetwork, "token fetch cancelled: %v", err)
			}
			return faultf(model.ErrKindAuth, "%s", sessionExpiredMessage)
		}
		if token == "" {
			return faultf(model.ErrKindAuth, "%s", sessionExpiredMessage)
		}

		status, body, err := c.post(ctx, token, reqBody)
		if err != nil {
			return faultf(model.ErrKindNetwork, "extraction call failed: %v", err)
		}

		if status >= 200 && status < 300 {
			if len(body) == 0 {
				return faultf(model.ErrKindUnknown, "extraction service returned status %d with an empty body", status)
			}
			if err := json.Unmarshal(body, out); err != nil {
				return faultf(model.ErrKindUnknown, "extraction service returned status %d with an unreadable body", status)
			}
			return nil
		}

		lastFault = classify(status, body)
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return lastFault
		}

		// Auth failure: wait, then retry with a force-refreshed token.
		if attempt < attempts-1 {
			zap.L().Info("extractor: auth rejected, refreshing token",
				zap.Int("attempt", attempt+1), zap.Int("status", status))
			select {
			case <-ctx.Done():
				return faultf(model.ErrKindNetwork, "cancelled while waiting to retry: %v", ctx.Err())
			case <-time.After(c.retryDelay):
			}
			force = true
		}
	}

	return lastFault
}

func (c *httpClient) post(ctx context.Context, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.functionURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, eris.Wrap(err, "extractor: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, eris.Wrap(err, "extractor: call function")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, eris.Wrap(err, "extractor: read response")
	}
	return resp.StatusCode, respBody, nil
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// HTTPProvider implements Provider against a GoTrue-style auth endpoint:
// POST {base}/token?grant_type=refresh_token to refresh, GET {base}/user to
// validate. It caches the last session in memory.
type HTTPProvider struct {
	baseURL      string
	anonKey      string
	refreshToken string
	http         *http.Client

	mu      sync.Mutex
	session *Token
}

// HTTPProviderOption configures an HTTPProvider.
type HTTPProviderOption func(*HTTPProvider)

// WithAuthHTTPClient sets a custom HTTP client.
func WithAuthHTTPClient(hc *http.Client) HTTPProviderOption {
	return func(p *HTTPProvider) {
		p.http = hc
	}
}

// NewHTTPProvider creates a Provider backed by the given auth endpoint.
func NewHTTPProvider(baseURL, anonKey, refreshToken string, opts ...HTTPProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:      baseURL,
		anonKey:      anonKey,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Session(ctx context.Context) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (p *HTTPProvider) Refresh(ctx context.Context) (*Token, error) {
	reqBody, err := json.Marshal(map[string]string{"refresh_token": p.currentRefreshToken()})
	if err != nil {
		return nil, eris.Wrap(err, "auth: marshal refresh request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/token?grant_type=refresh_token", bytes.NewReader(reqBody))
	if err != nil {
		return nil, eris.Wrap(err, "auth: create refresh request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "auth: refresh call")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "auth: read refresh response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("auth: refresh returned %d: %s", resp.StatusCode, string(body))
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "auth: unmarshal refresh response")
	}

	tok := &Token{
		Value:     rr.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(rr.ExpiresIn) * time.Second),
	}

	p.mu.Lock()
	p.session = tok
	if rr.RefreshToken != "" {
		p.refreshToken = rr.RefreshToken
	}
	p.mu.Unlock()

	return tok, nil
}

func (p *HTTPProvider) Validate(ctx context.Context, token string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		return false, eris.Wrap(err, "auth: create validate request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "auth: validate call")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

func (p *HTTPProvider) currentRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshToken
}

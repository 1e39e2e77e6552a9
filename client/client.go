// Package client is the caller-side invocation layer for the dispatch
// endpoint: it caches results, retries transient failures with exponential
// backoff, cancels superseded requests and transparently refreshes expired
// credentials before retrying.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultCacheTTL    = 5 * time.Minute
	defaultMaxRetries  = 3
	defaultBackoffBase = 200 * time.Millisecond
)

// Options tunes a single invocation.
type Options struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxRetries   int
	Timeout      time.Duration
	// Fallback is consulted after every retry is exhausted; its result is
	// treated as success and marked fromFallback.
	Fallback func() (map[string]any, error)
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = defaultCacheTTL
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Client invokes dispatched operations against one server. The cache and
// in-flight tracking are local to the instance; a new instance per UI
// component is the intended granularity.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	cache       map[string]cacheEntry
	inflight    map[string]*inflightCall

	backoffBase time.Duration
	now         func() time.Time
}

type inflightCall struct {
	cancel context.CancelFunc
}

type cacheEntry struct {
	data      map[string]any
	timestamp time.Time
}

// New builds a client with a cookie jar, so the refresh-token cookie set at
// login travels automatically on refresh calls.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Jar: jar},
		cache:       make(map[string]cacheEntry),
		inflight:    make(map[string]*inflightCall),
		backoffBase: defaultBackoffBase,
		now:         time.Now,
	}, nil
}

// SetAccessToken replaces the bearer credential used on invocations.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Login authenticates and primes both the access token and the refresh
// cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &InvocationError{
			Message:   "login failed",
			Status:    resp.StatusCode,
			Type:      ErrorTypeAuthentication,
			Timestamp: c.now(),
		}
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	c.SetAccessToken(payload.AccessToken)
	return nil
}

// Invoke runs a named operation. Results may come from the cache, the
// network, or the fallback; every failure is a *InvocationError.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any, opts Options) (map[string]any, error) {
	opts = opts.withDefaults()
	key := cacheKey(name, args)

	if opts.CacheEnabled {
		if data, ok := c.cachedResult(key, opts.CacheTTL); ok {
			return data, nil
		}
	}

	// Supersession: a newer call for the same logical request cancels the
	// one still in flight rather than queueing behind it.
	callCtx, cancel := context.WithCancel(ctx)
	call := &inflightCall{cancel: cancel}
	c.mu.Lock()
	if prior, ok := c.inflight[name]; ok {
		prior.cancel()
	}
	c.inflight[name] = call
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		if c.inflight[name] == call {
			delete(c.inflight, name)
		}
		c.mu.Unlock()
	}()

	refreshed := false
	attempt := 0
	for {
		envelope, invErr := c.call(callCtx, name, args, opts.Timeout)

		if invErr == nil {
			data, envErr := c.interpretEnvelope(name, envelope)
			if envErr != nil {
				return nil, envErr
			}
			if opts.CacheEnabled && callCtx.Err() == nil {
				c.storeResult(key, data)
			}
			return data, nil
		}

		// A superseded or caller-canceled request must not fall back,
		// retry, or touch any state.
		if callCtx.Err() != nil {
			return nil, &InvocationError{
				Message:   "request canceled",
				Type:      ErrorTypeCanceled,
				Timestamp: c.now(),
			}
		}

		switch invErr.Type {
		case ErrorTypeAuthExpired:
			if refreshed {
				return nil, c.authFailed()
			}
			refreshed = true
			if err := c.refresh(callCtx); err != nil {
				return nil, c.authFailed()
			}
			// Exactly one retry of the original call with the new token.
			continue
		case ErrorTypeTransient:
			if attempt < opts.MaxRetries {
				delay := time.Duration(1<<attempt) * c.backoffBase
				if err := sleepCtx(callCtx, delay); err != nil {
					return nil, &InvocationError{
						Message:   "request canceled",
						Type:      ErrorTypeCanceled,
						Timestamp: c.now(),
					}
				}
				attempt++
				continue
			}
			if opts.Fallback != nil {
				data, err := opts.Fallback()
				if err == nil {
					if data == nil {
						data = map[string]any{}
					}
					data["fromFallback"] = true
					return data, nil
				}
			}
			return nil, invErr
		default:
			return nil, invErr
		}
	}
}

// InvalidateCache drops the cached result for one (name, args) pair.
func (c *Client) InvalidateCache(name string, args map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, cacheKey(name, args))
}

// ClearCache drops every cached result.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// call performs one HTTP round trip and maps transport and status failures
// to typed errors; an envelope (success or application error) is returned
// as-is for interpretation.
func (c *Client) call(ctx context.Context, name string, args map[string]any, timeout time.Duration) (map[string]any, *InvocationError) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"functionName": name, "args": args})
	if err != nil {
		return nil, &InvocationError{Message: err.Error(), Type: ErrorTypeValidation, Timestamp: c.now()}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/functions", bytes.NewReader(body))
	if err != nil {
		return nil, &InvocationError{Message: err.Error(), Type: ErrorTypeTransient, Timestamp: c.now()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var envelope map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, &InvocationError{
				Message:   "malformed response body",
				Status:    resp.StatusCode,
				Type:      ErrorTypeTransient,
				Timestamp: c.now(),
			}
		}
		return envelope, nil
	case resp.StatusCode == http.StatusUnauthorized:
		errType := ErrorTypeAuthentication
		if isTokenExpiryMarker(resp.Header.Get("WWW-Authenticate")) {
			errType = ErrorTypeAuthExpired
		}
		return nil, &InvocationError{
			Message:   "authentication required",
			Status:    resp.StatusCode,
			Type:      errType,
			Timestamp: c.now(),
		}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &InvocationError{
			Message:   "forbidden",
			Status:    resp.StatusCode,
			Type:      ErrorTypeForbidden,
			Timestamp: c.now(),
		}
	case resp.StatusCode >= 500:
		return nil, &InvocationError{
			Message:   fmt.Sprintf("server error (%d)", resp.StatusCode),
			Status:    resp.StatusCode,
			Type:      ErrorTypeTransient,
			Timestamp: c.now(),
		}
	default:
		return nil, &InvocationError{
			Message:   fmt.Sprintf("request rejected (%d)", resp.StatusCode),
			Status:    resp.StatusCode,
			Type:      ErrorTypeValidation,
			Timestamp: c.now(),
		}
	}
}

// interpretEnvelope splits application-level envelope errors from payloads.
func (c *Client) interpretEnvelope(name string, envelope map[string]any) (map[string]any, *InvocationError) {
	if isErr, _ := envelope["error"].(bool); isErr {
		code, _ := envelope["code"].(string)
		message, _ := envelope["message"].(string)
		return nil, &InvocationError{
			Message:   message,
			Status:    http.StatusOK,
			Type:      errorTypeForCode(code),
			Code:      code,
			Timestamp: c.now(),
		}
	}
	return envelope, nil
}

// refresh asks for a new access token; the cookie jar supplies the
// refresh-token cookie and receives its rotated replacement.
func (c *Client) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("refresh rejected")
	}
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	c.SetAccessToken(payload.AccessToken)
	return nil
}

func (c *Client) authFailed() *InvocationError {
	return &InvocationError{
		Message:   "authentication failed",
		Status:    http.StatusUnauthorized,
		Type:      ErrorTypeAuthentication,
		Timestamp: c.now(),
	}
}

func (c *Client) cachedResult(key string, ttl time.Duration) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	// Lazy expiry: a stale entry is treated as absent and dropped.
	if c.now().Sub(entry.timestamp) >= ttl {
		delete(c.cache, key)
		return nil, false
	}
	return entry.data, true
}

func (c *Client) storeResult(key string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{data: data, timestamp: c.now()}
}

func (c *Client) normalizeTransportError(err error) *InvocationError {
	return &InvocationError{
		Message:   err.Error(),
		Type:      ErrorTypeTransient,
		Timestamp: c.now(),
	}
}

func isTokenExpiryMarker(header string) bool {
	return strings.Contains(header, "invalid_token")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

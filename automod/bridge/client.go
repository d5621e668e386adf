// HTTP client for a chat platform bot bridge: a small REST service which holds the bot's platform session and performs moderation actions on its behalf.
//
// Client implements engine.Platform, and ChannelAuditSink posts audit records into tenant log channels.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wardenchat/warden/automod/cachestore"
	"github.com/wardenchat/warden/automod/engine"
	"github.com/wardenchat/warden/util"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	// lifetime of cached permission lookups; see cachestore constructors
	DefaultPermsTTL = 30 * time.Second
	// throttled requests are retried once, if the bridge asks for a wait no longer than this
	MaxRetryAfter = 2 * time.Second
)

type Client struct {
	// base URL, eg "http://localhost:8400"
	Host  string
	Token string
	// HTTP client to use. If not set, a pooled client without retries; enforcement has its own deadline and fallback chain
	Client  *http.Client
	Limiter *rate.Limiter
	// optional cache for permission lookups
	Cache cachestore.CacheStore
}

var _ engine.Platform = (*Client)(nil)

type ClientOptions struct {
	Token string
	// requests per second to the bridge; zero means unlimited
	RateLimit int
	Cache     cachestore.CacheStore
}

func NewClient(host string, opts ClientOptions) *Client {
	hc := util.PooledHTTPClient(DefaultRequestTimeout)
	hc.Transport = otelhttp.NewTransport(hc.Transport)
	c := &Client{
		Host:   util.HTTPUrlForHost(host),
		Token:  opts.Token,
		Client: hc,
		Cache:  opts.Cache,
	}
	if opts.RateLimit > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return c
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return util.PooledHTTPClient(DefaultRequestTimeout)
	}
	return c.Client
}

type APIError struct {
	ErrStr  string `json:"error"`
	Message string `json:"message"`
}

func (ae *APIError) Error() string {
	return fmt.Sprintf("%s: %s", ae.ErrStr, ae.Message)
}

// Non-2xx response from the bridge.
type Error struct {
	StatusCode int
	Wrapped    error
	// parsed from Retry-After, if present
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("bridge error %d", e.StatusCode)
	}
	return fmt.Sprintf("bridge error %d: %s", e.StatusCode, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// 403 responses mean the bot lacks a platform permission; these are marked so the enforcer moves on to a fallback tier.
func (e *Error) Is(target error) bool {
	return target == engine.ErrPermissionDenied && e.StatusCode == http.StatusForbidden
}

func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func errorFromHTTPResponse(resp *http.Response) error {
	r := &Error{StatusCode: resp.StatusCode}
	var ae APIError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&ae); err == nil && ae.ErrStr != "" {
		r.Wrapped = &ae
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		r.RetryAfter = time.Duration(secs) * time.Second
	}
	return r
}

// Performs one JSON request. bodyobj and out may be nil.
//
// A throttled request is retried once when the bridge's Retry-After is short enough and fits in the context deadline.
func (c *Client) Do(ctx context.Context, method, path string, bodyobj, out any) error {
	var body []byte
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return err
		}
		body = b
	}

	err := c.doOnce(ctx, method, path, body, out)
	var be *Error
	if !errors.As(err, &be) || !be.IsThrottled() || !c.canWait(ctx, be.RetryAfter) {
		return err
	}

	t := time.NewTimer(be.RetryAfter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-t.C:
	}
	return c.doOnce(ctx, method, path, body, out)
}

func (c *Client) canWait(ctx context.Context, d time.Duration) bool {
	if d <= 0 || d > MaxRetryAfter {
		return false
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= d {
		return false
	}
	return true
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("bridge rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromHTTPResponse(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decoding bridge response: %w", err)
		}
	}
	return nil
}

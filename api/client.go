// Package api is a typed client for the link-aggregation REST backend.
//
// A Client is shared by the whole process. Calls made on behalf of a browser
// session go through a Conn, which carries that session's bearer token and
// refreshes it once on a 401 before giving up and clearing the credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"threadline/metrics"
)

const (
	refreshPath    = "/users/token/refresh/"
	refreshTimeout = 15 * time.Second
)

// Credentials is the token pair of one session.
type Credentials interface {
	Tokens() (access, refresh string)
	SetAccessToken(access string)
	ClearAuth()
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	baseURL   string
	http      *http.Client
	log       *zap.Logger
	metrics   *metrics.Metrics
	refreshes singleflight.Group
	now       func() time.Time
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		log:     logger.Named("upstream"),
		metrics: cfg.Metrics,
		now:     time.Now,
	}, nil
}

// Conn binds the client to creds. A nil creds makes anonymous calls.
func (c *Client) Conn(creds Credentials) *Conn {
	return &Conn{c: c, creds: creds}
}

// Anonymous is shorthand for Conn(nil).
func (c *Client) Anonymous() *Conn {
	return c.Conn(nil)
}

type Conn struct {
	c     *Client
	creds Credentials
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonRequest(method, path string, payload any) (*request, error) {
	r := &request{method: method, path: path}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		r.body = b
		r.contentType = "application/json"
	}
	return r, nil
}

func (cn *Conn) get(ctx context.Context, path string, query url.Values, out any) error {
	return cn.do(ctx, &request{method: http.MethodGet, path: path, query: query}, out)
}

func (cn *Conn) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	r, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return cn.do(ctx, r, out)
}

// do sends r and decodes a 2xx reply into out. An expired access token is
// refreshed before sending; otherwise a 401 triggers one refresh and one
// retry.
func (cn *Conn) do(ctx context.Context, r *request, out any) error {
	refreshed := false
	if cn.creds != nil {
		access, refresh := cn.creds.Tokens()
		if access != "" && cn.tokenExpired(access) {
			if err := cn.refresh(ctx, refresh); err != nil {
				return err
			}
			refreshed = true
		}
	}

	resp, err := cn.send(ctx, r)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !refreshed && cn.authenticated() {
		drain(resp)
		_, refresh := cn.creds.Tokens()
		if err := cn.refresh(ctx, refresh); err != nil {
			return err
		}
		if resp, err = cn.send(ctx, r); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	return decode(r, resp, out)
}

func (cn *Conn) authenticated() bool {
	if cn.creds == nil {
		return false
	}
	access, _ := cn.creds.Tokens()
	return access != ""
}

func (cn *Conn) send(ctx context.Context, r *request) (*http.Response, error) {
	target := cn.c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if cn.creds != nil {
		if access, _ := cn.creds.Tokens(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	start := cn.c.now()
	resp, err := cn.c.http.Do(req)
	if err != nil {
		cn.c.metrics.UpstreamRequest(r.method, 0)
		cn.c.log.Warn("upstream request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	cn.c.metrics.UpstreamRequest(r.method, resp.StatusCode)
	cn.c.log.Debug("upstream request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", cn.c.now().Sub(start)))
	return resp, nil
}

// refresh swaps the refresh token for a new access token. Concurrent refreshes
// of the same token share one upstream call, which outlives any single
// caller's context. Credentials are cleared only when upstream rejects the
// refresh, never because the caller went away.
func (cn *Conn) refresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		cn.expire(errors.New("no refresh token"))
		return ErrSessionExpired
	}

	ch := cn.c.refreshes.DoChan(refreshToken, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		var out struct {
			Access string `json:"access"`
		}
		err := cn.c.Anonymous().sendJSON(rctx, http.MethodPost, refreshPath, map[string]string{"refresh": refreshToken}, &out)
		if err == nil && out.Access == "" {
			err = errors.New("refresh response carried no access token")
		}
		cn.c.metrics.TokenRefresh(err == nil)
		return out.Access, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return fmt.Errorf("refresh token: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("refresh token: %w", ctx.Err())
		}
		cn.expire(res.Err)
		return fmt.Errorf("%w: %v", ErrSessionExpired, res.Err)
	}

	cn.creds.SetAccessToken(res.Val.(string))
	return nil
}

func (cn *Conn) expire(cause error) {
	cn.c.log.Info("clearing session credentials", zap.Error(cause))
	cn.creds.ClearAuth()
}

// tokenExpired reports whether a JWT access token's exp claim has passed.
// Tokens that are not JWTs are never considered expired.
func (cn *Conn) tokenExpired(access string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !cn.c.now().Before(claims.ExpiresAt.Time)
}

func decode(r *request, resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}
	if resp.StatusCode >= 300 {
		return parseError(r.method, r.path, resp.StatusCode, body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

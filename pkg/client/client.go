// Package client calls the configuration service on behalf of an
// authenticated editor user, signing every request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/hashring"
	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/respond"
	"ConfigService/signer"
)

// ConfigurationsPath is where the service mounts the configuration API.
const ConfigurationsPath = "/api/configurations"

type Options struct {
	// Endpoints are base URLs of the service replicas, e.g.
	// "http://localhost:3001". A user always goes to the same one.
	Endpoints     []string
	APIKey        string
	SigningSecret string

	HTTPClient *http.Client     // defaults to a client with a 10s timeout
	Now        func() time.Time // defaults to time.Now
	// MaxRetryElapsed bounds retries of transient failures.
	// Zero means 10s; negative disables retries.
	MaxRetryElapsed time.Duration
}

type Client struct {
	ring       *hashring.Ring
	apiKey     string
	signer     *signer.Signer
	http       *http.Client
	now        func() time.Time
	maxElapsed time.Duration
}

func New(opts Options) (*Client, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("client: at least one endpoint is required")
	}
	for _, ep := range opts.Endpoints {
		u, err := url.Parse(ep)
		if err != nil {
			return nil, errors.Wrapf(err, "client: bad endpoint %q", ep)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.Newf("client: endpoint %q must be an http(s) URL with a host", ep)
		}
	}
	if opts.APIKey == "" || opts.SigningSecret == "" {
		return nil, errors.New("client: API key and signing secret are required")
	}
	c := &Client{
		ring:       hashring.New(opts.Endpoints, 0),
		apiKey:     opts.APIKey,
		signer:     signer.New(opts.SigningSecret),
		http:       opts.HTTPClient,
		now:        opts.Now,
		maxElapsed: opts.MaxRetryElapsed,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.maxElapsed == 0 {
		c.maxElapsed = 10 * time.Second
	}
	return c, nil
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Title      string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Endpoint returns the replica that serves userID.
func (c *Client) Endpoint(userID string) string {
	return c.ring.Pick(userID)
}

// Headers returns the signed auth headers for one request.
func (c *Client) Headers(userID, method, path, body string) http.Header {
	ts := signer.Timestamp(c.now())
	h := make(http.Header)
	h.Set(auth.HeaderAPIKey, c.apiKey)
	h.Set(auth.HeaderUserID, userID)
	h.Set(auth.HeaderSignature, c.signer.Sign(method, signer.NormalizePath(path), body, ts))
	h.Set(auth.HeaderTimestamp, ts)
	return h
}

func (c *Client) List(ctx context.Context, userID string) ([]homescreen.Configuration, error) {
	var out []homescreen.Configuration
	err := c.call(ctx, userID, http.MethodGet, ConfigurationsPath, nil, &out)
	return out, err
}

// Get returns nil, nil when the configuration does not exist for userID.
func (c *Client) Get(ctx context.Context, userID, id string) (*homescreen.Configuration, error) {
	var out homescreen.Configuration
	err := c.call(ctx, userID, http.MethodGet, configPath(id), nil, &out)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	var out homescreen.Configuration
	err := c.call(ctx, userID, http.MethodPost, ConfigurationsPath, configBody{Data: data}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, userID, id string, data homescreen.Config) (homescreen.Configuration, error) {
	var out homescreen.Configuration
	err := c.call(ctx, userID, http.MethodPut, configPath(id), configBody{Data: data}, &out)
	return out, err
}

// Delete reports false when there was nothing to delete.
func (c *Client) Delete(ctx context.Context, userID, id string) (bool, error) {
	err := c.call(ctx, userID, http.MethodDelete, configPath(id), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return err == nil, err
}

type configBody struct {
	Data homescreen.Config `json:"data"`
}

// configPath escapes id, so the signed path is the path on the wire.
func configPath(id string) string {
	return ConfigurationsPath + "/" + url.PathEscape(id)
}

// call sends one logical request. Each attempt is signed afresh, so a
// retry never reuses a timestamp that may have aged out of the window.
func (c *Client) call(ctx context.Context, userID, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(err, "encode request")
		}
	}
	endpoint := c.Endpoint(userID)
	log := zerolog.Ctx(ctx).With().Str("method", method).Str("path", path).Str("endpoint", endpoint).Logger()

	var resp *http.Response
	attempt := 0
	op := func() error {
		attempt++
		req, err := c.newRequest(ctx, endpoint, userID, method, path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Debug().Err(err).Int("attempt", attempt).Msg("transport error, retrying")
			return err
		}
		if transient(r.StatusCode) {
			_ = r.Body.Close()
			log.Debug().Int("status", r.StatusCode).Int("attempt", attempt).Msg("transient status, retrying")
			return &APIError{StatusCode: r.StatusCode}
		}
		resp = r
		return nil
	}

	var err error
	if c.maxElapsed < 0 {
		err = op()
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxElapsedTime = c.maxElapsed
		err = backoff.Retry(op, backoff.WithContext(b, ctx))
	}
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, endpoint, userID, method, path string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(endpoint, "/")+path, rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, v := range c.Headers(userID, method, path, string(body)) {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func transient(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body respond.ErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Title = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}

// Package auth implements the service-to-service gate in front of the
// configuration API: a static API key, a caller identity, and a per-request
// HMAC signature bounded by a replay window.
package auth

import (
	"crypto/subtle"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"ConfigService/signer"
)

// Header names carried by every protected request.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderUserID    = "X-User-Id"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

const DefaultWindow = 5 * time.Minute

type Config struct {
	APIKey        string
	SigningSecret string
	// Window is the accepted clock skew in either direction.
	// Zero means DefaultWindow.
	Window time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Metrics is optional.
	Metrics *Metrics
}

// Request is everything the gate looks at. The transport layer fills it in;
// the gate itself never touches the network.
type Request struct {
	Method string
	// BasePath is where the router is mounted and SubPath what the
	// mounted router saw. The signer only knows the joined path.
	BasePath string
	SubPath  string
	Body     string

	APIKey    string
	UserID    string
	Signature string
	Timestamp string
}

// Path is the path the caller signed.
func (r *Request) Path() string {
	return signer.NormalizePath(r.BasePath + r.SubPath)
}

type rule struct {
	name  string
	check func(g *Gate, r *Request, now time.Time) *Error
}

// The order is part of the contract: callers get the first failure.
var rules = []rule{
	{"api-key-present", func(_ *Gate, r *Request, _ time.Time) *Error {
		if r.APIKey == "" {
			return ErrAPIKeyRequired
		}
		return nil
	}},
	{"api-key-valid", func(g *Gate, r *Request, _ time.Time) *Error {
		if subtle.ConstantTimeCompare([]byte(r.APIKey), g.apiKey) != 1 {
			return ErrInvalidAPIKey
		}
		return nil
	}},
	{"user-id-present", func(_ *Gate, r *Request, _ time.Time) *Error {
		if r.UserID == "" {
			return ErrUserIDRequired
		}
		return nil
	}},
	{"signature-present", func(_ *Gate, r *Request, _ time.Time) *Error {
		if r.Signature == "" {
			return ErrSignatureRequired
		}
		return nil
	}},
	{"timestamp-present", func(_ *Gate, r *Request, _ time.Time) *Error {
		if r.Timestamp == "" {
			return ErrTimestampRequired
		}
		return nil
	}},
	{"replay-window", func(g *Gate, r *Request, now time.Time) *Error {
		ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
		if err != nil {
			return ErrTimestampInvalid
		}
		if ts < 0 || abs64(now.UnixMilli()-ts) > uint64(g.window.Milliseconds()) {
			return ErrReplay
		}
		return nil
	}},
	{"signature-valid", func(g *Gate, r *Request, _ time.Time) *Error {
		if !g.signer.Verify(r.Method, r.Path(), r.Body, r.Timestamp, r.Signature) {
			return ErrInvalidSignature
		}
		return nil
	}},
}

// Gate decides whether a request may reach the storage layer.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	apiKey  []byte
	signer  *signer.Signer
	window  time.Duration
	now     func() time.Time
	metrics *Metrics
}

func New(cfg Config) (*Gate, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("auth: API key must be configured")
	}
	if cfg.SigningSecret == "" {
		return nil, errors.New("auth: signing secret must be configured")
	}
	if cfg.Window < 0 {
		return nil, errors.Newf("auth: negative replay window %s", cfg.Window)
	}
	g := &Gate{
		apiKey:  []byte(cfg.APIKey),
		signer:  signer.New(cfg.SigningSecret),
		window:  cfg.Window,
		now:     cfg.Now,
		metrics: cfg.Metrics,
	}
	if g.window == 0 {
		g.window = DefaultWindow
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Verify runs every rule in order and returns the caller identity on success.
// A failure is always an *Error.
func (g *Gate) Verify(r Request) (userID string, err error) {
	now := g.now()
	for _, ru := range rules {
		if e := ru.check(g, &r, now); e != nil {
			g.metrics.observe(ru.name, e.Kind)
			return "", &Error{Kind: e.Kind, Rule: ru.name, Message: e.Message}
		}
	}
	g.metrics.observe("", 0)
	return r.UserID, nil
}

func abs64(n int64) uint64 {
	m := n >> (64 - 1)
	return uint64((n ^ m) - m)
}

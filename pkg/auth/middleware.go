package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"ConfigService/pkg/respond"
)

// MaxBodyBytes bounds what the middleware buffers to verify a signature.
const MaxBodyBytes = 1 << 20

type ctxKey struct{}

// WithUserID returns a context carrying a verified caller identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the caller identity attached by the middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// RequestFromHTTP collects the gate's input from r. body must be the exact
// bytes of the request payload. The path is taken as sent, still escaped.
func RequestFromHTTP(r *http.Request, body []byte) Request {
	return Request{
		Method:    r.Method,
		SubPath:   r.URL.EscapedPath(),
		Body:      string(body),
		APIKey:    r.Header.Get(HeaderAPIKey),
		UserID:    r.Header.Get(HeaderUserID),
		Signature: r.Header.Get(HeaderSignature),
		Timestamp: r.Header.Get(HeaderTimestamp),
	}
}

// Middleware rejects unauthenticated requests with 401 before next runs.
// The body is buffered and handed on unchanged.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					respond.Error(w, http.StatusRequestEntityTooLarge, "Request body is too large")
					return
				}
				respond.Error(w, http.StatusBadRequest, "Unable to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		userID, err := g.Verify(RequestFromHTTP(r, body))
		if err != nil {
			var ae *Error
			if !errors.As(err, &ae) {
				respond.Error(w, http.StatusInternalServerError, "Authentication failed")
				return
			}
			zerolog.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("rule", ae.Rule).
				Stringer("kind", ae.Kind).
				Msg("request rejected")
			respond.Error(w, ae.SuggestedResponseCode(), ae.Message)
			return
		}

		zerolog.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("user_id", userID).
			Int("body_len", len(body)).
			Msg("request authenticated")
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

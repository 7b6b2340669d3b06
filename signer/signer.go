// Package signer computes the HMAC-SHA256 request signatures shared by the
// configuration service and its callers.
//
// The canonical string is
//
//	METHOD:PATH:BODY:TIMESTAMP
//
// joined by literal colons, where PATH carries no query string and no
// trailing slash (unless it is "/"), BODY is the exact JSON text sent (or
// the empty string) and TIMESTAMP is epoch milliseconds in decimal.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

type Signer struct{ Secret []byte }

func New(secret string) *Signer { return &Signer{Secret: []byte(secret)} }

// Canonical returns the string that is fed to the MAC.
func Canonical(method, path, body, timestamp string) string {
	return method + ":" + path + ":" + body + ":" + timestamp
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical string.
func (s *Signer) Sign(method, path, body, timestamp string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(Canonical(method, path, body, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
func (s *Signer) Verify(method, path, body, timestamp, signature string) bool {
	want := s.Sign(method, path, body, timestamp)
	return hmac.Equal([]byte(want), []byte(signature))
}

// NormalizePath drops the query string and a trailing slash, except for "/".
func NormalizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// Timestamp renders t as decimal epoch milliseconds.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

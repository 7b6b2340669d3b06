package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestSignDeterministic(t *testing.T) {
	c := qt.New(t)
	s := New("test-signature-secret")

	a := s.Sign("GET", "/api/configurations", "", "1234567890")
	b := s.Sign("GET", "/api/configurations", "", "1234567890")
	c.Assert(a, qt.Equals, b)
	c.Assert(a, qt.HasLen, 64)
	c.Assert(a, qt.Matches, "[0-9a-f]{64}")
}

func TestSignMatchesHMAC(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write([]byte("PUT:/api/configurations/7:{}:1700000000000"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := New("k").Sign("PUT", "/api/configurations/7", "{}", "1700000000000")
	qt.Assert(t, got, qt.Equals, want)
	qt.Assert(t, Canonical("GET", "/p", "b", "1"), qt.Equals, "GET:/p:b:1")
}

func TestSignSensitivity(t *testing.T) {
	s := New("test-signature-secret")
	base := s.Sign("POST", "/api/configurations", `{"data":"test"}`, "1700000000000")

	tests := []struct {
		name                   string
		method, path, body, ts string
	}{
		{"method", "PUT", "/api/configurations", `{"data":"test"}`, "1700000000000"},
		{"path", "POST", "/api/configurations/1", `{"data":"test"}`, "1700000000000"},
		{"body", "POST", "/api/configurations", `{"data":"tesT"}`, "1700000000000"},
		{"empty body", "POST", "/api/configurations", "", "1700000000000"},
		{"timestamp", "POST", "/api/configurations", `{"data":"test"}`, "1700000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qt.Assert(t, s.Sign(tt.method, tt.path, tt.body, tt.ts), qt.Not(qt.Equals), base)
		})
	}
}

func TestSignSecretMatters(t *testing.T) {
	a := New("one").Sign("GET", "/", "", "1")
	b := New("two").Sign("GET", "/", "", "1")
	qt.Assert(t, a, qt.Not(qt.Equals), b)
}

func TestVerify(t *testing.T) {
	c := qt.New(t)
	s := New("secret")
	sig := s.Sign("DELETE", "/api/configurations/abc", "", "42")

	c.Assert(s.Verify("DELETE", "/api/configurations/abc", "", "42", sig), qt.IsTrue)
	c.Assert(s.Verify("DELETE", "/api/configurations/abd", "", "42", sig), qt.IsFalse)
	c.Assert(s.Verify("DELETE", "/api/configurations/abc", "", "42", sig[:63]), qt.IsFalse)
	c.Assert(s.Verify("DELETE", "/api/configurations/abc", "", "42", ""), qt.IsFalse)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/":                         "/",
		"":                          "",
		"/api/configurations":       "/api/configurations",
		"/api/configurations/":      "/api/configurations",
		"/api/configurations/x?a=b": "/api/configurations/x",
		"/api/configurations/?a=b":  "/api/configurations",
		"/?a=b":                     "/",
	}
	for in, want := range tests {
		qt.Check(t, NormalizePath(in), qt.Equals, want, qt.Commentf("input %q", in))
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	qt.Assert(t, Timestamp(ts), qt.Equals, "1700000000123")
}

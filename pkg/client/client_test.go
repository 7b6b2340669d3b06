package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/client"
	"ConfigService/pkg/gateway"
	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/store"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-signature-secret"
)

func newService(c *qt.C) http.Handler {
	gate, err := auth.New(auth.Config{APIKey: testAPIKey, SigningSecret: testSecret})
	c.Assert(err, qt.IsNil)
	st, err := store.OpenSQLite(filepath.Join(c.TempDir(), "configurations.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = st.Close() })
	return gateway.New(gateway.Options{
		Gate:          gate,
		Store:         st,
		AllowedOrigin: "http://localhost:3000",
		Logger:        zerolog.Nop(),
	}).Handler()
}

func newServer(c *qt.C, h http.Handler) *httptest.Server {
	srv := httptest.NewServer(h)
	c.Cleanup(srv.Close)
	return srv
}

func newClient(c *qt.C, secret string, endpoints ...string) *client.Client {
	cl, err := client.New(client.Options{
		Endpoints:       endpoints,
		APIKey:          testAPIKey,
		SigningSecret:   secret,
		MaxRetryElapsed: 2 * time.Second,
	})
	c.Assert(err, qt.IsNil)
	return cl
}

func sample(title string) homescreen.Config {
	return homescreen.Config{
		Carousel: &homescreen.Carousel{
			Images:      []homescreen.CarouselImage{{URL: "https://cdn.example.com/a.jpg", Alt: "a"}},
			AspectRatio: homescreen.Landscape,
		},
		TextSection: &homescreen.TextSection{
			Title: title, Description: "d", TitleColor: "#000000", DescriptionColor: "#666666",
		},
		CTA: &homescreen.CTA{
			Label: "Go", URL: "https://example.com", BackgroundColor: "#000000", TextColor: "#FFFFFF",
		},
	}
}

func TestNewValidates(t *testing.T) {
	c := qt.New(t)
	_, err := client.New(client.Options{APIKey: "k", SigningSecret: "s"})
	c.Assert(err, qt.ErrorMatches, "client: at least one endpoint is required")
	_, err = client.New(client.Options{Endpoints: []string{"http://x"}})
	c.Assert(err, qt.ErrorMatches, "client: API key and signing secret are required")

	for _, ep := range []string{"localhost:3001", "config-service", "ftp://host", "http://", "http://%zz"} {
		_, err = client.New(client.Options{Endpoints: []string{ep}, APIKey: "k", SigningSecret: "s"})
		c.Assert(err, qt.ErrorMatches, "client: .*endpoint.*", qt.Commentf("endpoint %q", ep))
	}
}

func TestIDsAreEscapedConsistently(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	srv := newServer(c, newService(c))
	cl := newClient(c, testSecret, srv.URL)

	// Unknown ids with reserved characters are a clean miss, not a 401.
	for _, id := range []string{"odd?id", "100%", "a b", "x#y"} {
		got, err := cl.Get(ctx, "user-1", id)
		c.Assert(err, qt.IsNil, qt.Commentf("id %q", id))
		c.Assert(got, qt.IsNil)
		ok, err := cl.Delete(ctx, "user-1", id)
		c.Assert(err, qt.IsNil, qt.Commentf("id %q", id))
		c.Assert(ok, qt.IsFalse)
	}
}

func TestLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	srv := newServer(c, newService(c))
	cl := newClient(c, testSecret, srv.URL)

	list, err := cl.List(ctx, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 0)

	created, err := cl.Create(ctx, "user-1", sample("v1"))
	c.Assert(err, qt.IsNil)
	c.Assert(created.Data, qt.DeepEquals, sample("v1"))

	got, err := cl.Get(ctx, "user-1", created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNotNil)
	c.Assert(got.ID, qt.Equals, created.ID)

	updated, err := cl.Update(ctx, "user-1", created.ID, sample("v2"))
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Data.TextSection.Title, qt.Equals, "v2")

	missing, err := cl.Get(ctx, "user-2", created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(missing, qt.IsNil)

	ok, err := cl.Delete(ctx, "user-1", created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	ok, err = cl.Delete(ctx, "user-1", created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestValidationErrorSurfaces(t *testing.T) {
	c := qt.New(t)
	srv := newServer(c, newService(c))
	cl := newClient(c, testSecret, srv.URL)

	bad := sample("x")
	bad.Carousel.AspectRatio = "wide"
	_, err := cl.Create(context.Background(), "user-1", bad)
	c.Assert(client.IsStatus(err, http.StatusBadRequest), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "Aspect ratio must be portrait, landscape, or square")
}

func TestWrongSecretIsTerminal(t *testing.T) {
	c := qt.New(t)
	var hits atomic.Int32
	svc := newService(c)
	srv := newServer(c, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		svc.ServeHTTP(w, r)
	}))
	cl := newClient(c, "not-the-secret", srv.URL)

	_, err := cl.List(context.Background(), "user-1")
	c.Assert(client.IsStatus(err, http.StatusUnauthorized), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `Invalid signature\. Request may have been tampered with\.`)
	c.Assert(hits.Load(), qt.Equals, int32(1))
}

func TestRetriesTransientWithFreshSignature(t *testing.T) {
	c := qt.New(t)
	var hits atomic.Int32
	var stamps []string
	svc := newService(c)
	srv := newServer(c, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, r.Header.Get(auth.HeaderTimestamp))
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		svc.ServeHTTP(w, r)
	}))

	var tick atomic.Int64
	cl, err := client.New(client.Options{
		Endpoints:       []string{srv.URL},
		APIKey:          testAPIKey,
		SigningSecret:   testSecret,
		MaxRetryElapsed: 5 * time.Second,
		Now: func() time.Time {
			return time.Now().Add(time.Duration(tick.Add(1)) * time.Millisecond)
		},
	})
	c.Assert(err, qt.IsNil)

	list, err := cl.List(context.Background(), "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 0)
	c.Assert(hits.Load(), qt.Equals, int32(3))
	c.Assert(stamps, qt.HasLen, 3)
	c.Assert(stamps[0], qt.Not(qt.Equals), stamps[2])
}

func TestGivesUpOnPersistentOutage(t *testing.T) {
	c := qt.New(t)
	srv := newServer(c, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	cl, err := client.New(client.Options{
		Endpoints:       []string{srv.URL},
		APIKey:          testAPIKey,
		SigningSecret:   testSecret,
		MaxRetryElapsed: -1,
	})
	c.Assert(err, qt.IsNil)

	_, err = cl.List(context.Background(), "user-1")
	c.Assert(client.IsStatus(err, http.StatusBadGateway), qt.IsTrue)
}

func TestUserStaysOnOneReplica(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	a := newServer(c, newService(c))
	b := newServer(c, newService(c))
	cl := newClient(c, testSecret, a.URL, b.URL)

	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		created, err := cl.Create(ctx, user, sample(user))
		c.Assert(err, qt.IsNil)
		got, err := cl.Get(ctx, user, created.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.IsNotNil, qt.Commentf("user %s endpoint %s", user, cl.Endpoint(user)))
	}
}

func TestHeadersPassGate(t *testing.T) {
	c := qt.New(t)
	now := time.UnixMilli(1700000000000)
	cl, err := client.New(client.Options{
		Endpoints:     []string{"http://unused"},
		APIKey:        testAPIKey,
		SigningSecret: testSecret,
		Now:           func() time.Time { return now },
	})
	c.Assert(err, qt.IsNil)
	gate, err := auth.New(auth.Config{
		APIKey:        testAPIKey,
		SigningSecret: testSecret,
		Now:           func() time.Time { return now.Add(4 * time.Minute) },
	})
	c.Assert(err, qt.IsNil)

	h := cl.Headers("user-9", "PUT", "/api/configurations/abc", `{"data":{}}`)
	c.Assert(h.Get(auth.HeaderTimestamp), qt.Equals, "1700000000000")

	userID, err := gate.Verify(auth.Request{
		Method:    "PUT",
		SubPath:   "/api/configurations/abc",
		Body:      `{"data":{}}`,
		APIKey:    h.Get(auth.HeaderAPIKey),
		UserID:    h.Get(auth.HeaderUserID),
		Signature: h.Get(auth.HeaderSignature),
		Timestamp: h.Get(auth.HeaderTimestamp),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(userID, qt.Equals, "user-9")
}

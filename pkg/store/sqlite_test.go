package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/journal"
)

func sampleConfig(title string) homescreen.Config {
	return homescreen.Config{
		Carousel: &homescreen.Carousel{
			Images:      []homescreen.CarouselImage{{URL: "https://cdn.example.com/a.jpg", Alt: "a"}},
			AspectRatio: homescreen.Square,
		},
		TextSection: &homescreen.TextSection{
			Title: title, Description: "d", TitleColor: "#000000", DescriptionColor: "#666666",
		},
		CTA: &homescreen.CTA{
			Label: "Go", URL: "https://example.com", BackgroundColor: "#111111", TextColor: "#FFFFFF",
		},
	}
}

// fakeClock advances one second per reading.
func fakeClock() func() time.Time {
	t := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTestSQLite(c *qt.C) *SQLite {
	s, err := OpenSQLite(filepath.Join(c.TempDir(), "data", "configurations.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })
	return s.WithClock(fakeClock())
}

func TestSQLiteCRUD(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestSQLite(c)

	created, err := s.Create(ctx, "user-1", sampleConfig("first"))
	c.Assert(err, qt.IsNil)
	c.Assert(created.ID, qt.Not(qt.Equals), "")
	c.Assert(created.SchemaVersion, qt.Equals, 1)
	c.Assert(created.UpdatedAt.String(), qt.Equals, "2024-05-01T10:00:01.000Z")

	got, err := s.Get(ctx, created.ID, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, created)

	updated, err := s.Update(ctx, created.ID, "user-1", sampleConfig("second"))
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Data.TextSection.Title, qt.Equals, "second")
	c.Assert(updated.UpdatedAt.After(created.UpdatedAt.Time), qt.IsTrue)

	got, err = s.Get(ctx, created.ID, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Data.TextSection.Title, qt.Equals, "second")

	c.Assert(s.Delete(ctx, created.ID, "user-1"), qt.IsNil)
	_, err = s.Get(ctx, created.ID, "user-1")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(s.Delete(ctx, created.ID, "user-1"), qt.ErrorIs, ErrNotFound)
}

func TestSQLiteOwnership(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestSQLite(c)

	mine, err := s.Create(ctx, "user-1", sampleConfig("mine"))
	c.Assert(err, qt.IsNil)

	_, err = s.Get(ctx, mine.ID, "user-2")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = s.Update(ctx, mine.ID, "user-2", sampleConfig("stolen"))
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(s.Delete(ctx, mine.ID, "user-2"), qt.ErrorIs, ErrNotFound)

	list, err := s.List(ctx, "user-2")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 0)

	got, err := s.Get(ctx, mine.ID, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Data.TextSection.Title, qt.Equals, "mine")
}

func TestSQLiteListOrder(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestSQLite(c)

	a, err := s.Create(ctx, "user-1", sampleConfig("a"))
	c.Assert(err, qt.IsNil)
	b, err := s.Create(ctx, "user-1", sampleConfig("b"))
	c.Assert(err, qt.IsNil)
	_, err = s.Update(ctx, a.ID, "user-1", sampleConfig("a2"))
	c.Assert(err, qt.IsNil)

	list, err := s.List(ctx, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, a.ID)
	c.Assert(list[1].ID, qt.Equals, b.ID)
}

func TestSQLitePersists(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(c.TempDir(), "configurations.db")

	s, err := OpenSQLite(path)
	c.Assert(err, qt.IsNil)
	created, err := s.Create(ctx, "user-1", sampleConfig("kept"))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Close(), qt.IsNil)

	s, err = OpenSQLite(path)
	c.Assert(err, qt.IsNil)
	defer s.Close()
	got, err := s.Get(ctx, created.ID, "user-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Data.TextSection.Title, qt.Equals, "kept")
}

func TestJournaled(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(c.TempDir(), "journal.log")
	j, err := journal.Open(path)
	c.Assert(err, qt.IsNil)

	s := NewJournaled(openTestSQLite(c), j)
	created, err := s.Create(ctx, "user-1", sampleConfig("a"))
	c.Assert(err, qt.IsNil)
	_, err = s.Update(ctx, created.ID, "user-1", sampleConfig("b"))
	c.Assert(err, qt.IsNil)
	// Failed mutations are not journaled.
	_, err = s.Update(ctx, created.ID, "user-2", sampleConfig("c"))
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(s.Delete(ctx, created.ID, "user-1"), qt.IsNil)

	recs, err := journal.ReadAll(path)
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 3)
	c.Assert(recs[0].Op, qt.Equals, journal.OpCreate)
	c.Assert(recs[0].Digest, qt.Equals, Digest(sampleConfig("a")))
	c.Assert(recs[1].Op, qt.Equals, journal.OpUpdate)
	c.Assert(recs[1].Digest, qt.Not(qt.Equals), recs[0].Digest)
	c.Assert(recs[2], qt.CmpEquals(), journal.Record{At: recs[2].At, Op: journal.OpDelete, ID: created.ID, UserID: "user-1"})
}

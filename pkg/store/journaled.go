package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/journal"
)

// Journaled records every successful mutation of the wrapped Store.
// A journal write failure is logged; the mutation itself already happened.
type Journaled struct {
	Store
	j *journal.Journal
}

func NewJournaled(s Store, j *journal.Journal) *Journaled {
	return &Journaled{Store: s, j: j}
}

func (s *Journaled) Create(ctx context.Context, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	cfg, err := s.Store.Create(ctx, userID, data)
	if err == nil {
		s.record(journal.OpCreate, cfg, userID)
	}
	return cfg, err
}

func (s *Journaled) Update(ctx context.Context, id, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	cfg, err := s.Store.Update(ctx, id, userID, data)
	if err == nil {
		s.record(journal.OpUpdate, cfg, userID)
	}
	return cfg, err
}

func (s *Journaled) Delete(ctx context.Context, id, userID string) error {
	err := s.Store.Delete(ctx, id, userID)
	if err == nil {
		s.record(journal.OpDelete, homescreen.Configuration{ID: id}, userID)
	}
	return err
}

func (s *Journaled) Close() error {
	err := s.Store.Close()
	if jerr := s.j.Close(); err == nil {
		err = jerr
	}
	return err
}

func (s *Journaled) record(op journal.Op, cfg homescreen.Configuration, userID string) {
	rec := journal.Record{At: cfg.UpdatedAt.Time, Op: op, ID: cfg.ID, UserID: userID}
	if op != journal.OpDelete {
		rec.Digest = Digest(cfg.Data)
	}
	if rec.At.IsZero() {
		rec.At = clock(nil).now().Time
	}
	if err := s.j.Append(rec); err != nil {
		log.Error().Err(err).Str("op", string(op)).Str("id", cfg.ID).Msg("journal append failed")
	}
}

// Digest is a short fingerprint of a configuration's data.
func Digest(data homescreen.Config) string {
	b, _ := json.Marshal(data)
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

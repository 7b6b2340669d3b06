// Package journal is an append-only audit log of configuration changes.
// Each record is one JSON line, synced to disk before Append returns.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Record struct {
	At     time.Time `json:"at"`
	Op     Op        `json:"op"`
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	// Digest identifies the stored payload; empty for deletes.
	Digest string `json:"digest,omitempty"`
}

type Journal struct {
	mu sync.Mutex
	f  *os.File
}

func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	return &Journal{f: f}, nil
}

func (j *Journal) Append(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode journal record")
	}
	b = append(b, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(b); err != nil {
		return errors.Wrap(err, "write journal record")
	}
	return j.f.Sync()
}

func (j *Journal) Close() error { return j.f.Close() }

// ReadAll returns every record in the journal at path, oldest first.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, errors.Wrapf(err, "journal line %d", len(out)+1)
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(sc.Err(), "read journal")
}

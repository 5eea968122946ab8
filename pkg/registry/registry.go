// Package registry records inferred domains in a local sqlite database keyed
// by model digest, so repeated fuzzing sessions against the same model skip
// the (execution-heavy) search.
package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS domains (
	model_digest TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	backend      TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	ranges       BLOB NOT NULL
);`

// Record is one inferred domain, as stored.
type Record struct {
	ModelDigest string
	RunID       string
	Backend     string
	CreatedAt   time.Time
	Ranges      domain.RangeSet
}

type Registry struct {
	db *sql.DB
}

// Open opens (creating if needed) a registry database at path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening registry %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Put stores (or replaces) the inferred domain for a model digest and
// returns the run id assigned to this inference.
func (r *Registry) Put(ctx context.Context, modelDigest, backend string, set domain.RangeSet) (string, error) {
	var buf bytes.Buffer
	if err := domain.Encode(&buf, set); err != nil {
		return "", fmt.Errorf("encoding range set: %w", err)
	}
	runID := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO domains (model_digest, run_id, backend, created_at, ranges)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(model_digest) DO UPDATE SET
		   run_id = excluded.run_id,
		   backend = excluded.backend,
		   created_at = excluded.created_at,
		   ranges = excluded.ranges`,
		modelDigest, runID, backend, time.Now().UTC(), buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("storing domain for %q: %w", modelDigest, err)
	}
	return runID, nil
}

// Get looks up the stored domain for a model digest. The second return value
// reports whether a record exists.
func (r *Registry) Get(ctx context.Context, modelDigest string) (*Record, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT run_id, backend, created_at, ranges FROM domains WHERE model_digest = ?`,
		modelDigest)

	rec := &Record{ModelDigest: modelDigest}
	var blob []byte
	if err := row.Scan(&rec.RunID, &rec.Backend, &rec.CreatedAt, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("loading domain for %q: %w", modelDigest, err)
	}
	set, err := domain.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, false, fmt.Errorf("decoding stored domain for %q: %w", modelDigest, err)
	}
	rec.Ranges = set
	return rec, true, nil
}

// DigestFile returns the hex sha256 digest of a model file, the key under
// which its domain is registered.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening model %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digesting model %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Package snapshot keeps fetched jobs and their vectors in SQLite so a
// repeated query can skip fetching and embedding.
package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spigell/job-matcher/internal/index"
	"github.com/spigell/job-matcher/internal/listings"
)

const DefaultMaxAge = 6 * time.Hour

//go:embed schema.sql
var schema string

// Snapshot is one stored session. Vectors[i] belongs to Jobs[i].
type Snapshot struct {
	ID        string
	Query     listings.Query
	Model     string
	Jobs      []listings.Job
	Vectors   [][]float32
	CreatedAt time.Time
}

type Store struct {
	db     *sql.DB
	path   string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Open creates or opens the database at path. Snapshots older than maxAge
// are ignored and removed by Prune; a non-positive maxAge selects DefaultMaxAge.
func Open(path string, maxAge time.Duration, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot path is required")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		path:   path,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Save replaces the snapshot stored for the same query and model.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if len(snap.Jobs) != len(snap.Vectors) {
		return fmt.Errorf("snapshot has %d jobs but %d vectors", len(snap.Jobs), len(snap.Vectors))
	}

	jobs, err := json.Marshal(snap.Jobs)
	if err != nil {
		return fmt.Errorf("marshalling jobs: %w", err)
	}

	idx, err := index.Build(snap.Vectors)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	vectors, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshalling vectors: %w", err)
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (title, location, model, id, max_limit, jobs, vectors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title, location, model) DO UPDATE SET
			id = excluded.id,
			max_limit = excluded.max_limit,
			jobs = excluded.jobs,
			vectors = excluded.vectors,
			created_at = excluded.created_at
	`, normalize(snap.Query.Title), normalize(snap.Query.Location), snap.Model,
		snap.ID, snap.Query.Limit, string(jobs), vectors, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("session_id", snap.ID),
		zap.Int("jobs", len(snap.Jobs)),
	)
	return nil
}

// Load returns a fresh snapshot that can answer q, or nil when there is none.
// A stored session answers q when it was made with at least q.Limit as its
// limit; its jobs are cut to q.Limit. A non-positive limit never matches.
func (s *Store) Load(ctx context.Context, q listings.Query, model string) (*Snapshot, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	var (
		id        string
		limit     int
		jobsJSON  string
		blob      []byte
		createdAt int64
	)

	row := s.db.QueryRowContext(ctx, `
		SELECT id, max_limit, jobs, vectors, created_at
		FROM sessions
		WHERE title = ? AND location = ? AND model = ?
	`, normalize(q.Title), normalize(q.Location), model)
	if err := row.Scan(&id, &limit, &jobsJSON, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	created := time.Unix(0, createdAt)
	if s.now().Sub(created) > s.maxAge {
		s.logger.Debug("snapshot expired", zap.String("session_id", id), zap.Time("created_at", created))
		return nil, nil
	}
	if limit < q.Limit {
		s.logger.Debug("snapshot too small", zap.String("session_id", id), zap.Int("limit", limit))
		return nil, nil
	}

	var jobs []listings.Job
	if err := json.Unmarshal([]byte(jobsJSON), &jobs); err != nil {
		return nil, fmt.Errorf("decoding jobs: %w", err)
	}

	var idx index.Flat
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decoding vectors: %w", err)
	}
	vectors := idx.Vectors()
	if len(vectors) != len(jobs) {
		return nil, fmt.Errorf("snapshot %s has %d jobs but %d vectors", id, len(jobs), len(vectors))
	}

	if len(jobs) > q.Limit {
		jobs = jobs[:q.Limit]
		vectors = vectors[:q.Limit]
	}

	return &Snapshot{
		ID:        id,
		Query:     q,
		Model:     model,
		Jobs:      jobs,
		Vectors:   vectors,
		CreatedAt: created,
	}, nil
}

// Prune removes expired snapshots and returns how many were deleted.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

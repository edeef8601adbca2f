// Package matcher ranks job postings by semantic similarity to a résumé.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/index"
	"github.com/spigell/job-matcher/internal/listings"
	"github.com/spigell/job-matcher/internal/snapshot"
)

// Fetcher retrieves job postings for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q listings.Query) (*listings.Result, error)
}

// Request describes one matching session. A nil or blank Resume returns the
// fetched jobs unranked.
type Request struct {
	Resume   *string
	JobTitle string
	Location string
	Limit    int
	// TopN keeps only the best N matches after ranking. Zero keeps all.
	TopN int
}

// Match is a ranked (or, without a résumé, unranked) job.
type Match struct {
	listings.Job
	Similarity *float64 `json:"similarityScore,omitempty"`
	Rank       int      `json:"rank,omitempty"`
}

// Result is the outcome of a session.
type Result struct {
	SessionID   string         `json:"sessionId"`
	Query       listings.Query `json:"query"`
	Matches     []Match        `json:"matches"`
	Total       int            `json:"total"`
	Ranked      bool           `json:"ranked"`
	Model       string         `json:"model,omitempty"`
	SnapshotID  string         `json:"snapshotId,omitempty"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Snapshots keeps fetched jobs and their vectors between sessions.
type Snapshots interface {
	Load(ctx context.Context, q listings.Query, model string) (*snapshot.Snapshot, error)
	Save(ctx context.Context, snap *snapshot.Snapshot) error
}

type Matcher struct {
	fetcher   Fetcher
	embedder  embedding.Embedder
	snapshots Snapshots
	logger    *zap.Logger
	now       func() time.Time
}

func New(fetcher Fetcher, embedder embedding.Embedder, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		fetcher:  fetcher,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithSnapshots makes ranked sessions reuse stored jobs and vectors for the
// same query and embedding model.
func (m *Matcher) WithSnapshots(s Snapshots) *Matcher {
	m.snapshots = s
	return m
}

// Match runs fetch, embed, index and rank for one session. An empty job set
// is a successful empty result. Embedding and index errors are returned, and
// a cancelled ctx aborts the session without a partial ranking.
func (m *Matcher) Match(ctx context.Context, req Request) (*Result, error) {
	sessionID := uuid.NewString()
	log := m.logger.With(zap.String("session_id", sessionID))

	q := listings.Query{Title: req.JobTitle, Location: req.Location, Limit: req.Limit}
	result := &Result{
		SessionID: sessionID,
		Query:     q,
		Matches:   []Match{},
	}

	if q.Limit <= 0 {
		log.Info("limit is not positive, nothing to fetch", zap.Int("limit", q.Limit))
		return m.finish(result), nil
	}

	hasResume := req.Resume != nil && strings.TrimSpace(*req.Resume) != ""

	var snap *snapshot.Snapshot
	if hasResume {
		snap = m.loadSnapshot(ctx, q, log)
	}

	var (
		jobs    []listings.Job
		jobVecs [][]float32
	)
	if snap != nil {
		jobs, jobVecs = snap.Jobs, snap.Vectors
		result.SnapshotID = snap.ID
		log.Info("reusing snapshot", zap.String("snapshot_id", snap.ID), zap.Int("count", len(jobs)))
	} else {
		fetched, err := m.fetcher.Fetch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetch jobs: %w", err)
		}
		if fetched.Upstream != nil {
			result.Diagnostics = append(result.Diagnostics, fetched.Upstream.Error())
		}

		log.Info("fetched jobs",
			zap.String("title", q.Title),
			zap.String("location", q.Location),
			zap.Int("count", len(fetched.Jobs)),
			zap.Int("pages", fetched.Pages),
		)
		jobs = fetched.Jobs
	}

	if len(jobs) == 0 {
		log.Info("no jobs found")
		return m.finish(result), nil
	}

	if !hasResume {
		log.Info("no resume provided, returning unranked jobs")
		for _, job := range jobs {
			result.Matches = append(result.Matches, Match{Job: job})
		}
		return m.finish(result), nil
	}

	if jobVecs == nil {
		var err error
		jobVecs, err = m.embed(ctx, descriptions(jobs))
		if err != nil {
			return nil, fmt.Errorf("embed jobs: %w", err)
		}
		m.saveSnapshot(ctx, &snapshot.Snapshot{
			ID:      sessionID,
			Query:   q,
			Model:   m.embedder.Model(),
			Jobs:    jobs,
			Vectors: jobVecs,
		}, log)
	}

	resumeVecs, err := m.embed(ctx, []string{*req.Resume})
	if err != nil {
		return nil, fmt.Errorf("embed resume: %w", err)
	}

	matches, err := m.RankVectors(ctx, resumeVecs[0], jobs, jobVecs)
	if err != nil {
		return nil, err
	}

	if req.TopN > 0 && len(matches) > req.TopN {
		matches = matches[:req.TopN]
	}

	result.Matches = matches
	result.Ranked = true
	result.Model = m.embedder.Model()

	log.Info("ranked jobs", zap.Int("count", len(matches)), zap.String("model", result.Model))

	return m.finish(result), nil
}

func (m *Matcher) loadSnapshot(ctx context.Context, q listings.Query, log *zap.Logger) *snapshot.Snapshot {
	if m.snapshots == nil {
		return nil
	}
	snap, err := m.snapshots.Load(ctx, q, m.embedder.Model())
	if err != nil {
		log.Warn("snapshot lookup failed", zap.Error(err))
		return nil
	}
	return snap
}

func (m *Matcher) saveSnapshot(ctx context.Context, snap *snapshot.Snapshot, log *zap.Logger) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.Save(ctx, snap); err != nil {
		log.Warn("snapshot save failed", zap.Error(err))
	}
}

// RankJobs embeds the résumé and job descriptions, searches a fresh index
// over the jobs and returns every job ranked by similarity.
func (m *Matcher) RankJobs(ctx context.Context, resume string, jobs []listings.Job) ([]Match, error) {
	if len(jobs) == 0 {
		return []Match{}, nil
	}

	resumeVecs, err := m.embed(ctx, []string{resume})
	if err != nil {
		return nil, fmt.Errorf("embed resume: %w", err)
	}

	jobVecs, err := m.embed(ctx, descriptions(jobs))
	if err != nil {
		return nil, fmt.Errorf("embed jobs: %w", err)
	}

	return m.RankVectors(ctx, resumeVecs[0], jobs, jobVecs)
}

// RankVectors ranks jobs whose vectors were already computed. jobVecs[i]
// must belong to jobs[i].
func (m *Matcher) RankVectors(ctx context.Context, resumeVec []float32, jobs []listings.Job, jobVecs [][]float32) ([]Match, error) {
	catalog, err := index.NewCatalog(jobs, jobVecs)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits, err := catalog.Search(resumeVec, catalog.Len())
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return rank(hits), nil
}

func (m *Matcher) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := embedding.Check(vecs, len(texts), m.embedder.Dimension()); err != nil {
		return nil, err
	}
	return vecs, nil
}

func descriptions(jobs []listings.Job) []string {
	docs := make([]string, len(jobs))
	for i, job := range jobs {
		docs[i] = job.Description
	}
	return docs
}

func (m *Matcher) finish(result *Result) *Result {
	result.Total = len(result.Matches)
	result.GeneratedAt = m.now().UTC()
	return result
}

// rank converts distances into similarities and orders the hits. Ties keep
// fetch order.
func rank(hits []index.Hit[listings.Job]) []Match {
	distances := make([]float64, len(hits))
	for i, h := range hits {
		distances[i] = h.Distance
	}
	scores := Similarities(distances)

	type scored struct {
		match    Match
		position int
	}
	items := make([]scored, len(hits))
	for i, h := range hits {
		s := scores[i]
		items[i] = scored{match: Match{Job: h.Item, Similarity: &s}, position: h.Position}
	}

	sort.SliceStable(items, func(a, b int) bool {
		sa, sb := *items[a].match.Similarity, *items[b].match.Similarity
		if sa != sb {
			return sa > sb
		}
		return items[a].position < items[b].position
	})

	matches := make([]Match, len(items))
	for i, it := range items {
		matches[i] = it.match
		matches[i].Rank = i + 1
	}
	return matches
}

// Similarities maps squared distances to 1 - d/max(d). When every distance
// is zero all similarities are 1.
func Similarities(distances []float64) []float64 {
	var maxDist float64
	for _, d := range distances {
		if d > maxDist {
			maxDist = d
		}
	}

	out := make([]float64, len(distances))
	for i, d := range distances {
		if maxDist == 0 {
			out[i] = 1
			continue
		}
		out[i] = 1 - d/maxDist
	}
	return out
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Manager orchestrates memory operations: ingestion (Remember), retrieval
// (Recall) and decay-driven eviction (ForgetStale). It owns no record state
// itself; the Store owns all records and the Manager only ever works on
// store-returned copies.
//
// A single Manager tolerates concurrent calls from multiple goroutines.
// Write serialization is the backend's job; retrieval snapshots mean an
// in-flight Recall never observes a partial record and is never invalidated
// by a concurrent ForgetStale.
type Manager struct {
	store    Store
	embedder Embedder
	cfg      Config
	scorer   *Scorer
	clock    Clock

	embedTimeout time.Duration
	cache        *ristretto.Cache
}

// Option customizes a Manager at construction.
type Option func(*Manager) error

// WithClock injects the time source, for deterministic testing.
func WithClock(clock Clock) Option {
	return func(m *Manager) error {
		if clock == nil {
			return &ConfigError{Field: "clock", Reason: "must not be nil"}
		}
		m.clock = clock
		return nil
	}
}

// WithEmbedTimeout bounds every embedding call. On expiry the operation
// fails with ErrEmbedTimeout instead of hanging.
func WithEmbedTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		if d < 0 {
			return &ConfigError{Field: "embed_timeout", Reason: "must not be negative"}
		}
		m.embedTimeout = d
		return nil
	}
}

// WithEmbedCache adds a ristretto cache of text -> embedding, capped at
// maxBytes, so repeated Remember/Recall of identical text skips the
// embedding call.
func WithEmbedCache(maxBytes int64) Option {
	return func(m *Manager) error {
		if maxBytes <= 0 {
			return &ConfigError{Field: "embed_cache", Reason: "size must be positive"}
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     maxBytes,
			BufferItems: 64,
		})
		if err != nil {
			return &ConfigError{Field: "embed_cache", Reason: err.Error()}
		}
		m.cache = cache
		return nil
	}
}

// NewManager creates a Manager over the given store and embedder. The config
// is validated and copied; invalid values fail with *ConfigError.
func NewManager(store Store, embedder Embedder, cfg *Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, &ConfigError{Field: "store", Reason: "must not be nil"}
	}
	if embedder == nil {
		return nil, &ConfigError{Field: "embedder", Reason: "must not be nil"}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := *cfg
	if c.FadeMode == "" {
		c.FadeMode = FadeFromCreation
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		store:    store,
		embedder: embedder,
		cfg:      c,
		scorer:   NewScorer(c.DecayRate, c.FadeMode == FadeFromAccess),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Remember embeds content and writes it as a new record. Returns NoRecord
// without touching the store when memory is disabled, and on any embedding
// failure (no partial record is ever written).
func (m *Manager) Remember(ctx context.Context, content string) (RecordID, error) {
	if !m.cfg.Enabled {
		return NoRecord, nil
	}

	embedding, err := m.embed(ctx, content)
	if err != nil {
		return NoRecord, err
	}

	rec := &Record{
		CreatedAt: m.clock(),
		Content:   content,
		Embedding: embedding,
	}
	id, err := m.store.Put(ctx, rec)
	if err != nil {
		return NoRecord, err
	}

	log.Printf("[MEMORY] Stored record %d (%d chars)", id, len(content))
	return id, nil
}

// Recall returns the records most relevant to query, scored at the current
// time, in score order (ties broken newest first), capped at the configured
// context window. Records below the similarity threshold never appear.
// An empty result is not an error.
func (m *Manager) Recall(ctx context.Context, query string) ([]Result, error) {
	if !m.cfg.Enabled {
		return nil, nil
	}

	embedding, err := m.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := m.candidates(ctx, embedding)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	results := make([]Result, 0, len(candidates))
	for _, rec := range candidates {
		score, err := m.scorer.Score(embedding, rec, now)
		if err != nil {
			return nil, err
		}
		if score < m.cfg.SimilarityThreshold {
			continue
		}
		results = append(results, Result{Record: rec, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
	if len(results) > m.cfg.MaxContextWindow {
		results = results[:m.cfg.MaxContextWindow]
	}

	if m.cfg.FadeMode == FadeFromAccess {
		for _, r := range results {
			if err := m.store.Touch(ctx, r.Record.ID, now); err != nil {
				return nil, err
			}
			r.Record.LastAccessed = now
		}
	}

	log.Printf("[MEMORY] Recalled %d of %d candidates for query %q",
		len(results), len(candidates), truncateLog(query, 50))
	return results, nil
}

// candidates fetches the scoring candidate set: a pre-ranked set from
// index-capable backends, otherwise a full snapshot. Either way the backend
// must surface every record that could pass the threshold.
func (m *Manager) candidates(ctx context.Context, query []float32) ([]*Record, error) {
	if cs, ok := m.store.(CandidateStore); ok {
		return cs.Candidates(ctx, query, 0)
	}
	return m.store.GetAll(ctx)
}

// Recent returns the n most recent records, newest first, independent of
// similarity. Useful for seeding a prompt with short-term history alongside
// Recall's relevance hits.
func (m *Manager) Recent(ctx context.Context, n int) ([]*Record, error) {
	if !m.cfg.Enabled || n <= 0 {
		return nil, nil
	}

	records, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// GetAll is ID-ordered and IDs are temporal.
	if len(records) > n {
		records = records[len(records)-n:]
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// ForgetStale evicts every record whose pure decay multiplier, as a score
// out of 100, has fallen below cutoffScore. Similarity plays no part: this
// is how old information is forgotten without a query. Returns the number
// of records removed.
func (m *Manager) ForgetStale(ctx context.Context, cutoffScore float64) (int, error) {
	if !m.cfg.Enabled {
		return 0, nil
	}
	if !(cutoffScore >= 0 && cutoffScore <= 100) {
		return 0, &ConfigError{Field: "cutoff_score", Reason: fmt.Sprintf("%v outside [0,100]", cutoffScore)}
	}

	now := m.clock()
	records, err := m.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rec := range records {
		if m.scorer.DecayFactor(rec, now)*100 >= cutoffScore {
			continue
		}
		ok, err := m.store.Delete(ctx, rec.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		log.Printf("[MEMORY] Forgot %d stale records (cutoff %.1f)", removed, cutoffScore)
	}
	return removed, nil
}

// Character budget for an injected context block, shared across entries
// with a floor so crowded recalls still show something per entry.
const (
	contextCharBudget = 2000
	minEntryChars     = 100
)

// FormatContext renders recall results into a prompt-injection block,
// dividing a fixed character budget across entries.
func (m *Manager) FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	perEntry := contextCharBudget / len(results)
	if perEntry < minEntryChars {
		perEntry = minEntryChars
	}

	parts := []string{"=== RELEVANT PAST INTERACTIONS ===\n"}
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("%d. [%.1f] %s\n", i+1, r.Score, truncateLog(r.Record.Content, perEntry)))
	}
	return strings.Join(parts, "\n")
}

// Close releases the Manager's resources, including the underlying store.
func (m *Manager) Close() error {
	if m.cache != nil {
		m.cache.Close()
	}
	return m.store.Close()
}

// embed runs the embedding capability with the cache and timeout applied.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(text); ok {
			if embedding, ok := v.([]float32); ok {
				return embedding, nil
			}
		}
	}

	if m.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.embedTimeout)
		defer cancel()
	}

	type embedResult struct {
		vec []float32
		err error
	}
	ch := make(chan embedResult, 1)
	go func() {
		vec, err := m.embedder.Embed(ctx, text)
		ch <- embedResult{vec: vec, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, ErrEmbedTimeout
			}
			return nil, &EmbeddingError{Err: r.err}
		}
		if want := m.embedder.Dimensions(); want > 0 && len(r.vec) != want {
			return nil, &EmbeddingError{Err: fmt.Errorf("embedder returned %d dimensions, expected %d", len(r.vec), want)}
		}
		if m.cache != nil {
			m.cache.Set(text, r.vec, int64(len(r.vec)*4))
		}
		return r.vec, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrEmbedTimeout
		}
		return nil, &EmbeddingError{Err: ctx.Err()}
	}
}

// truncateLog truncates text for logging and formatting.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

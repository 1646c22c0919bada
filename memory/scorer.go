package memory

import (
	"fmt"
	"math"
	"time"
)

// Scorer computes time-decayed relevance scores in [0,100]: cosine
// similarity mapped linearly from [-1,1] to [0,100], multiplied by
// exp(-decayRate * elapsedSeconds). The combination is monotone
// multiplicative, so the decayed score never exceeds the undecayed
// similarity and is non-increasing in elapsed time.
type Scorer struct {
	decayRate    float64
	fadeOnAccess bool
}

// NewScorer builds a scorer. fadeOnAccess selects last-retrieval time as the
// decay reference instead of creation time.
func NewScorer(decayRate float64, fadeOnAccess bool) *Scorer {
	return &Scorer{decayRate: decayRate, fadeOnAccess: fadeOnAccess}
}

// Score returns the decayed relevance of rec against the query embedding at
// time now. A query/record dimension mismatch fails with *ConfigError; the
// store invariant makes that unreachable in normal operation, but it must
// never be silently ignored.
func (s *Scorer) Score(query []float32, rec *Record, now time.Time) (float64, error) {
	cos, err := Cosine(query, rec.Embedding)
	if err != nil {
		return 0, err
	}
	base := (cos + 1) * 50
	return base * s.DecayFactor(rec, now), nil
}

// DecayFactor returns the similarity-free decay multiplier in (0,1] for rec
// at time now. This is what ForgetStale compares against its cutoff.
func (s *Scorer) DecayFactor(rec *Record, now time.Time) float64 {
	if s.decayRate == 0 {
		return 1
	}

	ref := rec.CreatedAt
	if s.fadeOnAccess && !rec.LastAccessed.IsZero() {
		ref = rec.LastAccessed
	}

	elapsed := now.Sub(ref).Seconds()
	if elapsed <= 0 {
		// Clock skew must not inflate scores above pure similarity.
		return 1
	}
	return math.Exp(-s.decayRate * elapsed)
}

// Cosine returns the cosine similarity of two vectors in [-1,1],
// accumulating in float64. Zero-norm vectors yield 0. Length mismatch fails
// with *ConfigError.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &ConfigError{
			Field:  "embedding",
			Reason: fmt.Sprintf("query dimension %d does not match record dimension %d", len(a), len(b)),
		}
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Guard against float drift outside [-1,1].
	return math.Max(-1, math.Min(1, cos)), nil
}

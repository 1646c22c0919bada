package memory_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/becomeliminal/engram-go/memory"
)

// unitVec builds a 3-dim unit vector whose cosine similarity to (1,0,0) is
// exactly cos.
func unitVec(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos)), 0}
}

var queryVec = []float32{1, 0, 0}

func TestScorerMapsCosineToPercent(t *testing.T) {
	s := memory.NewScorer(0, false)
	now := time.Now()

	cases := []struct {
		cos  float64
		want float64
	}{
		{1, 100},
		{0, 50},
		{-1, 0},
		{0.8, 90},
		{-0.4, 30},
	}
	for _, c := range cases {
		rec := &memory.Record{CreatedAt: now, Embedding: unitVec(c.cos)}
		got, err := s.Score(queryVec, rec, now)
		if err != nil {
			t.Fatalf("Score(cos=%v): %v", c.cos, err)
		}
		if math.Abs(got-c.want) > 0.01 {
			t.Errorf("cos %v: score = %v, want %v", c.cos, got, c.want)
		}
	}
}

func TestScorerDecayMonotonic(t *testing.T) {
	s := memory.NewScorer(0.001, false)
	created := time.Unix(1_700_000_000, 0)
	rec := &memory.Record{CreatedAt: created, Embedding: unitVec(0.9)}

	prev := math.Inf(1)
	for elapsed := 0; elapsed <= 10_000; elapsed += 500 {
		score, err := s.Score(queryVec, rec, created.Add(time.Duration(elapsed)*time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if score > prev {
			t.Fatalf("score rose from %v to %v at elapsed %ds", prev, score, elapsed)
		}
		prev = score
	}
}

func TestScorerZeroDecayRateIsConstant(t *testing.T) {
	s := memory.NewScorer(0, false)
	created := time.Unix(1_700_000_000, 0)
	rec := &memory.Record{CreatedAt: created, Embedding: unitVec(0.5)}

	first, err := s.Score(queryVec, rec, created)
	if err != nil {
		t.Fatal(err)
	}
	later, err := s.Score(queryVec, rec, created.Add(365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if first != later {
		t.Errorf("score changed over time with decay disabled: %v -> %v", first, later)
	}
}

func TestScorerSpecScenario(t *testing.T) {
	// decay_rate 0.0001, three records at t=0 with similarities 90, 60,
	// 45 (as percent); at t=100s the decayed scores are ~89.10, ~59.40,
	// ~44.55.
	s := memory.NewScorer(0.0001, false)
	created := time.Unix(1_700_000_000, 0)
	now := created.Add(100 * time.Second)

	cases := []struct {
		cos  float64
		want float64
	}{
		{0.8, 90 * math.Exp(-0.01)},
		{0.2, 60 * math.Exp(-0.01)},
		{-0.1, 45 * math.Exp(-0.01)},
	}
	for _, c := range cases {
		rec := &memory.Record{CreatedAt: created, Embedding: unitVec(c.cos)}
		got, err := s.Score(queryVec, rec, now)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-c.want) > 0.05 {
			t.Errorf("cos %v: score = %v, want ~%v", c.cos, got, c.want)
		}
	}
}

func TestScorerDecayNeverExceedsSimilarity(t *testing.T) {
	s := memory.NewScorer(0.01, false)
	created := time.Unix(1_700_000_000, 0)
	rec := &memory.Record{CreatedAt: created, Embedding: unitVec(0.8)}

	// A clock reading before the record's creation must not inflate the
	// score above the undecayed similarity.
	score, err := s.Score(queryVec, rec, created.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if score > 90.01 {
		t.Errorf("score %v exceeds undecayed similarity 90", score)
	}
}

func TestScorerFadeFromAccess(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)
	now := created.Add(10_000 * time.Second)
	rec := &memory.Record{
		CreatedAt:    created,
		LastAccessed: now.Add(-time.Second),
		Embedding:    unitVec(1),
	}

	byCreation := memory.NewScorer(0.001, false)
	byAccess := memory.NewScorer(0.001, true)

	creationScore, err := byCreation.Score(queryVec, rec, now)
	if err != nil {
		t.Fatal(err)
	}
	accessScore, err := byAccess.Score(queryVec, rec, now)
	if err != nil {
		t.Fatal(err)
	}

	if accessScore <= creationScore {
		t.Errorf("recently accessed record should outscore creation-decayed: access %v <= creation %v", accessScore, creationScore)
	}
	if accessScore < 99.8 {
		t.Errorf("access one second ago should barely decay, got %v", accessScore)
	}
}

func TestScorerDimensionMismatch(t *testing.T) {
	s := memory.NewScorer(0, false)
	rec := &memory.Record{CreatedAt: time.Now(), Embedding: []float32{1, 0}}

	_, err := s.Score(queryVec, rec, time.Now())
	var cfgErr *memory.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCosineZeroVector(t *testing.T) {
	cos, err := memory.Cosine([]float32{0, 0, 0}, unitVec(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if cos != 0 {
		t.Errorf("zero-norm cosine = %v, want 0", cos)
	}
}

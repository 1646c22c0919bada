package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/engram-go/memory"
	"github.com/becomeliminal/engram-go/memory/store/chromem"
)

var query = []float32{1, 0, 0}

func seed(t *testing.T, s *chromem.Store) {
	t.Helper()
	ctx := context.Background()
	// Unit vectors with cosine similarity 1.0, 0.6 and 0.0 to the query.
	records := []*memory.Record{
		{Content: "exact", Embedding: []float32{1, 0, 0}},
		{Content: "close", Embedding: []float32{0.6, 0.8, 0}},
		{Content: "unrelated", Embedding: []float32{0, 1, 0}},
	}
	for _, rec := range records {
		if _, err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%s): %v", rec.Content, err)
		}
	}
}

func TestCandidatesRankedBySimilarity(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seed(t, s)

	got, err := s.Candidates(ctx, query, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want all 3", len(got))
	}
	want := []string{"exact", "close", "unrelated"}
	for i, rec := range got {
		if rec.Content != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, rec.Content, want[i])
		}
	}
}

func TestCandidatesLimit(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seed(t, s)

	got, err := s.Candidates(ctx, query, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Content != "exact" || got[1].Content != "close" {
		t.Errorf("top two = [%s %s]", got[0].Content, got[1].Content)
	}
}

func TestCandidatesEmptyStore(t *testing.T) {
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Candidates(context.Background(), query, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d candidates from empty store", len(got))
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seed(t, s)

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := s.Delete(ctx, all[0].ID) // "exact"
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}

	got, err := s.Candidates(ctx, query, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates after delete, want 2", len(got))
	}
	for _, rec := range got {
		if rec.Content == "exact" {
			t.Error("deleted record still ranked by the index")
		}
	}
}

func TestClearRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seed(t, s)

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := s.Candidates(ctx, query, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("%d candidates after Clear", len(got))
	}

	// The store must accept new records after a Clear.
	if _, err := s.Put(ctx, &memory.Record{Content: "fresh", Embedding: []float32{0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	got, err = s.Candidates(ctx, []float32{0, 0, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "fresh" {
		t.Fatalf("candidates after re-seed = %v", got)
	}
}

func TestTouchUpdatesRecord(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seed(t, s)

	at := time.Unix(1_700_000_000, 0)
	if err := s.Touch(ctx, 1, at); err != nil {
		t.Fatal(err)
	}
	all, _ := s.GetAll(ctx)
	if !all[0].LastAccessed.Equal(at) {
		t.Errorf("last accessed = %v, want %v", all[0].LastAccessed, at)
	}
}

package inmem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/becomeliminal/engram-go/memory"
	"github.com/becomeliminal/engram-go/memory/store/inmem"
)

func put(t *testing.T, s *inmem.Store, content string) memory.RecordID {
	t.Helper()
	id, err := s.Put(context.Background(), &memory.Record{
		Content:   content,
		Embedding: []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	s := inmem.New()
	defer s.Close()

	id1 := put(t, s, "a")
	id2 := put(t, s, "b")
	if id1 != 1 || id2 != 2 {
		t.Fatalf("IDs = %d, %d; want 1, 2", id1, id2)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Content != "a" || all[1].Content != "b" {
		t.Fatalf("GetAll = %v", all)
	}

	ok, err := s.Delete(ctx, id1)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	ok, err = s.Delete(ctx, id1)
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v, want false", ok, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	all, _ = s.GetAll(ctx)
	if len(all) != 0 {
		t.Fatalf("%d records after Clear", len(all))
	}

	// IDs never repeat, even across Clear.
	if id := put(t, s, "c"); id <= id2 {
		t.Errorf("ID %d reused after Clear", id)
	}
}

func TestGetAllReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := inmem.New()
	defer s.Close()

	put(t, s, "original")

	all, _ := s.GetAll(ctx)
	all[0].Content = "mutated"
	all[0].Embedding[0] = 42

	again, _ := s.GetAll(ctx)
	if again[0].Content != "original" || again[0].Embedding[0] != 1 {
		t.Error("mutating a GetAll result leaked into the store")
	}
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	s := inmem.New()
	defer s.Close()

	id := put(t, s, "a")
	at := time.Unix(1_700_000_000, 0)
	if err := s.Touch(ctx, id, at); err != nil {
		t.Fatal(err)
	}
	// Unknown IDs are ignored.
	if err := s.Touch(ctx, 999, at); err != nil {
		t.Fatal(err)
	}

	all, _ := s.GetAll(ctx)
	if !all[0].LastAccessed.Equal(at) {
		t.Errorf("last accessed = %v, want %v", all[0].LastAccessed, at)
	}
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := inmem.New()
	defer s.Close()

	put(t, s, "a")
	_, err := s.Put(ctx, &memory.Record{Content: "b", Embedding: []float32{1, 0}})
	var storageErr *memory.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

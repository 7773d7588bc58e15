package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/epiprep/internal/preprocess"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// BLAKE3-256 of "hello world" is well-known.
	want := "d74981efa70a0c880b8d8c1985d075dbcbf679b99a5f9914e5aaf96b831a9e24"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// BLAKE3-256 of empty input is well-known.
	want := "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestCacheKey_DependsOnOptions(t *testing.T) {
	h := ContentHashHex([]byte("x"))
	a := CacheKey(h, preprocess.Options{OptimizeMarkup: true, ReconcileAnnotations: true})
	b := CacheKey(h, preprocess.Options{OptimizeMarkup: true})
	if a == b {
		t.Error("expected option bits in the key")
	}
	if want := "epiprep:v1:" + h + ":o1r1c0"; a != want {
		t.Errorf("expected key %q, got %q", want, a)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("epi.json", []byte("{}"), preprocess.DefaultOptions())
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("expected uuid job id, got %q", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if string(job.Input()) != "{}" {
		t.Errorf("expected input to be kept, got %q", job.Input())
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("a.json", nil, preprocess.Options{})

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusDecoding, "decoding"},
		{StatusPreprocessing, "preprocessing"},
		{StatusEncoding, "encoding"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
		if job.Status.Done() {
			t.Errorf("status %q should not be final", tr.status)
		}
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("bad.json", []byte("nope"), preprocess.Options{})
	job.SetStatus(StatusDecoding, "decoding")
	job.Fail(errors.New("decode: invalid character"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed || !snap.Status.Done() {
		t.Errorf("expected failed status, got %q", snap.Status)
	}
	if snap.Phase != "decoding" {
		t.Errorf("expected phase to stay %q, got %q", "decoding", snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "decode: invalid character" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if job.Input() != nil {
		t.Error("expected input to be released")
	}
}

func TestJob_CompositionDone(t *testing.T) {
	job := NewJob("b.json", nil, preprocess.Options{})
	job.SetTotalCompositions(2)
	job.CompositionDone(preprocess.Stats{FragmentsOptimized: 3, AnnotationsRemoved: 1})
	job.CompositionDone(preprocess.Stats{FragmentsOptimized: 2})

	snap := job.Snapshot()
	if snap.Progress.TotalCompositions != 2 || snap.Progress.CompositionsProcessed != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if snap.Progress.FragmentsOptimized != 5 {
		t.Errorf("expected 5 fragments optimized, got %d", snap.Progress.FragmentsOptimized)
	}
	if snap.Progress.AnnotationsRemoved != 1 {
		t.Errorf("expected 1 annotation removed, got %d", snap.Progress.AnnotationsRemoved)
	}
}

func TestJob_CompleteCached(t *testing.T) {
	job := NewJob("c.json", []byte("{}"), preprocess.Options{})
	job.Complete(&Result{
		Output:       []byte("{}"),
		Compositions: 1,
		Stats:        preprocess.Stats{FragmentsOptimized: 4},
		ContentHash:  "abc",
		Cached:       true,
	})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted || !snap.Cached || snap.ContentHash != "abc" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Progress.CompositionsProcessed != 1 || snap.Progress.FragmentsOptimized != 4 {
		t.Errorf("expected progress filled from cached result, got %+v", snap.Progress)
	}
	if job.Result() == nil || job.Input() != nil {
		t.Error("expected result kept and input released")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	if n := store.Cleanup(); n != 1 {
		t.Errorf("expected 1 job evicted, got %d", n)
	}

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job left, got %d", store.Len())
	}
}

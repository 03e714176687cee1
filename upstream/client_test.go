package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestInscriptionsInBlockPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/inscriptions/block/100":
			w.Write([]byte(`{"ids":["a","b"],"more":true,"page_index":0}`))
		case "/inscriptions/block/100/1":
			w.Write([]byte(`{"ids":["c"],"more":false,"page_index":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewOrdinalsClient([]string{srv.URL}, "", true, nil, nil)
	if err := c.Discover(context.Background(), "/inscriptions/block/100"); err != nil {
		t.Fatal(err)
	}

	p0, err := c.InscriptionsInBlock(context.Background(), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(p0.IDs) != 2 || !p0.More {
		t.Fatalf("unexpected page 0: %+v", p0)
	}

	p1, err := c.InscriptionsInBlock(context.Background(), 100, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(p1.IDs) != 1 || p1.More {
		t.Fatalf("unexpected page 1: %+v", p1)
	}
}

func TestGetRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/probe" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":[],"more":false,"page_index":0}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	c := NewOrdinalsClient([]string{srv.URL}, "", true, rec, nil)
	if err := c.Discover(context.Background(), "/probe"); err != nil {
		t.Fatal(err)
	}

	_, err := c.InscriptionsInBlock(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	// Three get attempts plus the re-probe made after the second
	// consecutive transient failure.
	if atomic.LoadInt32(&calls) != 4 {
		t.Fatalf("expected 3 attempts and 1 re-probe, got %d calls", calls)
	}
	if rec.calls < 3 {
		t.Fatalf("expected recorder to observe all attempts, got %d", rec.calls)
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOrdinalsClient([]string{srv.URL}, "", true, nil, nil)
	if err := c.Discover(context.Background(), "/anything"); err != nil {
		// Discover accepts NotFound as a successful smoke call.
		t.Fatal(err)
	}

	_, err := c.Inscription(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if atomic.LoadInt32(&calls) > 2 { // one for discover, one for the real call
		t.Fatalf("expected no retries on 404, got %d calls", calls)
	}
}

func TestContentPreviewFallsBackWithoutRangeSupport(t *testing.T) {
	full := []byte("0123456789abcdefghijklmnopqrstuvwxyz0123456789abcdefghij")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore Range header entirely, always return the full body.
		w.Write(full)
	}))
	defer srv.Close()

	c := NewOrdinalsClient([]string{srv.URL}, "", true, nil, nil)
	if err := c.Discover(context.Background(), "/content/x"); err != nil {
		t.Fatal(err)
	}

	preview, err := c.ContentPreview(context.Background(), "x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(preview) != string(full[:10]) {
		t.Fatalf("got %q, want %q", preview, full[:10])
	}
}

type fakeRecorder struct {
	calls int
}

func (f *fakeRecorder) RecordResult(success bool, latency time.Duration) {
	f.calls++
}

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/adaptive"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/cache"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/pattern"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// TestProcessBlockAcceptsBitmapClaim runs one full block through every
// pipeline stage: fetch, filter, classify, validate, and commit.
func TestProcessBlockAcceptsBitmapClaim(t *testing.T) {
	ordSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/inscriptions/block/792000":
			w.Write([]byte(`{"ids":["bmapi0"],"more":false,"page_index":0}`))
		case "/inscription/bmapi0":
			w.Write([]byte(`{"id":"bmapi0","address":"bc1qOwner","content_type":"text/plain","height":792000}`))
		case "/content/bmapi0":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("792000.bitmap"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ordSrv.Close()

	txSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/block-height/792000":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hashABC\n"))
		case "/block/hashABC":
			w.Write([]byte(`{"hash":"hashABC","tx_count":5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer txSrv.Close()

	ord := upstream.NewOrdinalsClient([]string{ordSrv.URL}, "", true, nil, nil)
	if err := ord.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	tx := upstream.NewTxClient([]string{txSrv.URL}, "", true, nil, nil)
	if err := tx.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	concurrency := adaptive.NewConcurrencyManager(1, 5, 2, nil)
	defer concurrency.Close()

	p := &Pipeline{
		Ordinals:    ord,
		Tx:          tx,
		Cache:       cache.New(cache.Options{}),
		DB:          db,
		Concurrency: concurrency,
		BatchSizer:  adaptive.NewBatchSizer(1, 50, 10),
		Wallets:     store.NewWalletBatcher(db),
		Pattern:     &pattern.Generator{Tx: tx, DB: db},
	}
	defer p.Cache.Close()

	stats, err := p.ProcessBlock(context.Background(), 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Bitmaps != 1 {
		t.Fatalf("expected 1 bitmap, got %+v", stats)
	}
	if stats.TotalInscriptions != 1 {
		t.Fatalf("expected 1 total inscription, got %+v", stats)
	}
	if stats.TotalTransactions != 5 {
		t.Fatalf("expected tx count 5, got %+v", stats)
	}

	got, err := store.FetchBitmapByNumber(db.Root(), 792000)
	if err != nil {
		t.Fatal(err)
	}
	if got.InscriptionID != "bmapi0" {
		t.Fatalf("got %+v", got)
	}
}

package pattern

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

func TestBucketDigit(t *testing.T) {
	tests := []struct {
		sats int64
		want byte
	}{
		{500_000, '1'},               // 0.005 BTC
		{1_000_000, '1'},             // 0.01 BTC exactly: class 1's upper bound
		{50_000_000, '3'},            // 0.5 BTC
		{5_000_000_000, '5'},         // 50 BTC
		{2_000_000_000_000_000, '9'}, // far beyond 1,000,000 BTC
	}
	for _, tt := range tests {
		if got := bucketDigit(tt.sats); got != tt.want {
			t.Errorf("bucketDigit(%d) = %q, want %q", tt.sats, got, tt.want)
		}
	}
}

func TestGenerateComputesPatternFromTxList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/block-height/792000":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hashABC\n"))
		case r.URL.Path == "/block/hashABC":
			w.Write([]byte(`{"hash":"hashABC","tx_count":2,"tx_ids":["tx1","tx2"]}`))
		case r.URL.Path == "/tx/tx1":
			w.Write([]byte(`{"vout":[{"scriptpubkey_address":"a","value":500000}]}`))
		case r.URL.Path == "/tx/tx2":
			w.Write([]byte(`{"vout":[{"scriptpubkey_address":"b","value":5000000000}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	txClient := upstream.NewTxClient([]string{srv.URL}, "", true, nil, nil)
	if err := txClient.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	g := &Generator{Tx: txClient, DB: db}
	if err := g.Generate(context.Background(), 42, 792000); err != nil {
		t.Fatal(err)
	}

	got, err := store.FetchBitmapPattern(db.Root(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pattern != "15" {
		t.Fatalf("got pattern %q, want %q", got.Pattern, "15")
	}
	if got.Synthetic {
		t.Fatal("expected a non-synthetic pattern")
	}
}

func TestGenerateSkipsWhenSyntheticDisabledAndTxListMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/block-height/792000":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hashABC\n"))
		default:
			w.Write([]byte(`{"hash":"hashABC","tx_count":2}`))
		}
	}))
	defer srv.Close()

	txClient := upstream.NewTxClient([]string{srv.URL}, "", true, nil, nil)
	if err := txClient.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	g := &Generator{Tx: txClient, DB: db, AllowSynthetic: false}
	if err := g.Generate(context.Background(), 42, 792000); err != nil {
		t.Fatal(err)
	}

	if _, err := store.FetchBitmapPattern(db.Root(), 42); !store.IsNotFoundError(err) {
		t.Fatalf("expected no pattern stored, got err=%v", err)
	}
}

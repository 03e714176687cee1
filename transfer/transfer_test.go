package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/adaptive"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

func newTestTracker(t *testing.T, handler http.HandlerFunc, db *store.DB) *Tracker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ord := upstream.NewOrdinalsClient([]string{srv.URL}, "", true, nil, nil)
	if err := ord.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}

	concurrency := adaptive.NewConcurrencyManager(1, 5, 2, nil)
	t.Cleanup(concurrency.Close)

	return &Tracker{Ordinals: ord, DB: db, Concurrency: concurrency, Wallets: store.NewWalletBatcher(db)}
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReconcileOneDetectsBitmapTransfer(t *testing.T) {
	db := openTestDB(t)

	bitmap := &model.Bitmap{
		InscriptionID: "bmapi0",
		BitmapNumber:  1,
		Address:       "bc1qOriginal",
		Wallet:        "bc1qOriginal",
		BlockHeight:   1,
	}
	if _, err := store.InsertBitmap(db.Root(), bitmap); err != nil {
		t.Fatal(err)
	}
	wallet := &model.Wallet{InscriptionID: "bmapi0", Address: "bc1qOriginal", Kind: model.KindBitmap}
	if err := store.UpsertWallet(db.Root(), wallet); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/inscription/bmapi0" {
			w.Write([]byte(`{"id":"bmapi0","address":"bc1qNewOwner","content_type":"text/plain","height":1}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, db)

	changed, err := tr.reconcileOne(context.Background(), *wallet, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected a detected change")
	}

	got, err := store.FetchBitmapByNumber(db.Root(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Wallet != "bc1qNewOwner" {
		t.Fatalf("expected wallet column updated, got %q", got.Wallet)
	}

	if err := tr.Wallets.Flush(); err != nil {
		t.Fatal(err)
	}
	updatedWallet, err := store.FetchWallet(db.Root(), "bmapi0")
	if err != nil {
		t.Fatal(err)
	}
	if updatedWallet.Address != "bc1qNewOwner" {
		t.Fatalf("expected wallet row updated, got %q", updatedWallet.Address)
	}
}

func TestReconcileOneNoopWhenAddressUnchanged(t *testing.T) {
	db := openTestDB(t)

	wallet := &model.Wallet{InscriptionID: "depi0", Address: "bc1qSame", Kind: model.KindDeploy}
	if err := store.UpsertWallet(db.Root(), wallet); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"depi0","address":"bc1qSame","content_type":"application/json","height":1}`))
	}, db)

	changed, err := tr.reconcileOne(context.Background(), *wallet, 2)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("expected no change to be detected")
	}
}

func TestRunReconcilesEveryWallet(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"a", "b", "c"} {
		wallet := &model.Wallet{InscriptionID: id, Address: "bc1qOld", Kind: model.KindDeploy}
		if err := store.UpsertWallet(db.Root(), wallet); err != nil {
			t.Fatal(err)
		}
	}

	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","address":"bc1qNew","content_type":"application/json","height":1}`))
	}, db)

	if err := tr.Run(context.Background(), 100); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"a", "b", "c"} {
		got, err := store.FetchWallet(db.Root(), id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Address != "bc1qNew" {
			t.Fatalf("expected %s reconciled, got %q", id, got.Address)
		}
	}
}

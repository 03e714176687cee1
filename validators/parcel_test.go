package validators

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

func seedBitmap(t *testing.T, deps Deps, b *model.Bitmap) {
	t.Helper()
	if _, err := store.InsertBitmap(deps.DB.Root(), b); err != nil {
		t.Fatal(err)
	}
}

// TestValidateParcelHappyPath accepts a parcel that is a genuine child of
// its bitmap and within the bitmap's block transaction count.
func TestValidateParcelHappyPath(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":["parceli0"]}`))
	})
	tx := newTestTx(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/block-height/792000":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("blockhashABC\n"))
		default:
			w.Write([]byte(`{"tx_count":50}`))
		}
	})
	deps := newTestDeps(t, ord, tx)
	seedBitmap(t, deps, &model.Bitmap{InscriptionID: "bmapi0", BitmapNumber: 792000, BlockHeight: 792000})

	insc := upstream.Inscription{ID: "parceli0", Address: "bc1qParcel", Height: 792010, Timestamp: time.Now()}
	p, outcome, err := ValidateParcel(context.Background(), deps, insc, 3, 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != store.ParcelInserted || p == nil {
		t.Fatalf("expected insertion, got outcome=%v p=%+v", outcome, p)
	}
}

// TestValidateParcelRejectsNonChild: a parcel that is not actually a child
// of the bitmap it claims must be rejected.
func TestValidateParcelRejectsNonChild(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":["someoneelsei0"]}`))
	})
	tx := newTestTx(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tx_count":50}`))
	})
	deps := newTestDeps(t, ord, tx)
	seedBitmap(t, deps, &model.Bitmap{InscriptionID: "bmapi0", BitmapNumber: 792000, BlockHeight: 792000})

	insc := upstream.Inscription{ID: "notachildi0", Address: "bc1qParcel", Height: 792010, Timestamp: time.Now()}
	p, outcome, err := ValidateParcel(context.Background(), deps, insc, 3, 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil || outcome != store.ParcelSkipped {
		t.Fatalf("expected rejection, got outcome=%v p=%+v", outcome, p)
	}
}

// TestValidateParcelAcceptsTentativelyWhenTxCountUnknown pins spec.md
// §4.6.4 step 3's null-count branch: when the upstream block response
// omits tx_count entirely, the parcel is accepted tentatively (not
// rejected as out-of-range against a false zero) and its
// transaction_count is persisted as null.
func TestValidateParcelAcceptsTentativelyWhenTxCountUnknown(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":["parceli0"]}`))
	})
	tx := newTestTx(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/block-height/792000":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("blockhashABC\n"))
		default:
			w.Write([]byte(`{"hash":"blockhashABC"}`)) // tx_count omitted
		}
	})
	deps := newTestDeps(t, ord, tx)
	seedBitmap(t, deps, &model.Bitmap{InscriptionID: "bmapi0", BitmapNumber: 792000, BlockHeight: 792000})

	insc := upstream.Inscription{ID: "parceli0", Address: "bc1qParcel", Height: 792010, Timestamp: time.Now()}
	p, outcome, err := ValidateParcel(context.Background(), deps, insc, 999999, 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != store.ParcelInserted || p == nil {
		t.Fatalf("expected tentative insertion, got outcome=%v p=%+v", outcome, p)
	}
	if p.TransactionCount != nil {
		t.Fatalf("expected transaction_count to be recorded as null, got %v", *p.TransactionCount)
	}
}

// TestValidateParcelTieBreaker pins scenario S4: of two parcels
// concurrently claiming the same (bitmap, parcel number), the earlier
// block height wins regardless of arrival order.
func TestValidateParcelTieBreaker(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":["earlyi0","latei0"]}`))
	})
	tx := newTestTx(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tx_count":50}`))
	})
	deps := newTestDeps(t, ord, tx)
	seedBitmap(t, deps, &model.Bitmap{InscriptionID: "bmapi0", BitmapNumber: 10, BlockHeight: 800000})

	late := upstream.Inscription{ID: "latei0", Address: "bc1qLate", Height: 800050, Timestamp: time.Now()}
	_, outcome, err := ValidateParcel(context.Background(), deps, late, 5, 10)
	if err != nil || outcome != store.ParcelInserted {
		t.Fatalf("expected first-seen insert: outcome=%v err=%v", outcome, err)
	}

	early := upstream.Inscription{ID: "earlyi0", Address: "bc1qEarly", Height: 800010, Timestamp: time.Now()}
	_, outcome, err = ValidateParcel(context.Background(), deps, early, 5, 10)
	if err != nil || outcome != store.ParcelReplaced {
		t.Fatalf("expected earlier-height parcel to win: outcome=%v err=%v", outcome, err)
	}

	got, err := store.FetchBitmapParcelByNumber(deps.DB.Root(), 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.InscriptionID != "earlyi0" {
		t.Fatalf("expected earlier winner retained, got %s", got.InscriptionID)
	}
}

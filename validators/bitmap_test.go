package validators

import (
	"testing"
	"time"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

func newTestStoreDeps(t *testing.T) Deps {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return Deps{DB: db, Wallets: store.NewWalletBatcher(db)}
}

// TestValidateBitmapHappyPath accepts a claim on a block that already exists.
func TestValidateBitmapHappyPath(t *testing.T) {
	deps := newTestStoreDeps(t)
	insc := upstream.Inscription{ID: "bmapi0", Address: "bc1qOwner", Height: 792000, Timestamp: time.Now()}

	b, err := ValidateBitmap(deps, insc, 791000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected bitmap to be accepted")
	}
	if b.Content != "791000.bitmap" {
		t.Fatalf("got %+v", b)
	}
}

// TestValidateBitmapRejectsFutureBlock: a bitmap number greater than the
// inscription's own height claims a block that did not exist yet.
func TestValidateBitmapRejectsFutureBlock(t *testing.T) {
	deps := newTestStoreDeps(t)
	insc := upstream.Inscription{ID: "bmapi0", Address: "bc1qOwner", Height: 792000, Timestamp: time.Now()}

	b, err := ValidateBitmap(deps, insc, 900000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != nil {
		t.Fatalf("expected rejection of a future block claim, got %+v", b)
	}
}

// TestValidateBitmapUniqueness pins scenario S3: only the first claim on a
// given block number survives.
func TestValidateBitmapUniqueness(t *testing.T) {
	deps := newTestStoreDeps(t)

	first := upstream.Inscription{ID: "firsti0", Address: "bc1qFirst", Height: 792000, Timestamp: time.Now()}
	b1, err := ValidateBitmap(deps, first, 792000)
	if err != nil || b1 == nil {
		t.Fatalf("expected first claim accepted: b=%+v err=%v", b1, err)
	}

	second := upstream.Inscription{ID: "secondi0", Address: "bc1qSecond", Height: 792001, Timestamp: time.Now()}
	b2, err := ValidateBitmap(deps, second, 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b2 != nil {
		t.Fatalf("expected duplicate bitmap claim rejected, got %+v", b2)
	}

	got, err := store.FetchBitmapByNumber(deps.DB.Root(), 792000)
	if err != nil {
		t.Fatal(err)
	}
	if got.InscriptionID != "firsti0" {
		t.Fatalf("expected first-seen winner, got %s", got.InscriptionID)
	}
}

// TestValidateBitmapTieBreakByChainOrderNotCallOrder pins the tie-break
// rule in spec.md §3: the winner is determined by (block_height,
// inscription_id) lexicographic order, not by which claim was validated
// first. Here the call processed *second* has the earlier block_height,
// so it must displace the claim that was processed (and accepted) first.
func TestValidateBitmapTieBreakByChainOrderNotCallOrder(t *testing.T) {
	deps := newTestStoreDeps(t)

	late := upstream.Inscription{ID: "latei0", Address: "bc1qLate", Height: 792010, Timestamp: time.Now()}
	b1, err := ValidateBitmap(deps, late, 792000)
	if err != nil || b1 == nil {
		t.Fatalf("expected first call accepted: b=%+v err=%v", b1, err)
	}

	early := upstream.Inscription{ID: "earlyi0", Address: "bc1qEarly", Height: 792000, Timestamp: time.Now()}
	b2, err := ValidateBitmap(deps, early, 792000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b2 == nil {
		t.Fatal("expected the earlier (block_height, inscription_id) claim to displace the first-called one")
	}

	got, err := store.FetchBitmapByNumber(deps.DB.Root(), 792000)
	if err != nil {
		t.Fatal(err)
	}
	if got.InscriptionID != "earlyi0" {
		t.Fatalf("expected chain-order winner earlyi0, got %s", got.InscriptionID)
	}
}

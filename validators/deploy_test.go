package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

func newTestOrdinals(t *testing.T, handler http.HandlerFunc) *upstream.OrdinalsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := upstream.NewOrdinalsClient([]string{srv.URL}, "", true, nil, nil)
	if err := c.Discover(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	return c
}

func newTestDeps(t *testing.T, ordinals *upstream.OrdinalsClient, tx *upstream.TxClient) Deps {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return Deps{Ordinals: ordinals, Tx: tx, DB: db, Wallets: store.NewWalletBatcher(db)}
}

// TestValidateDeployHappyPath pins scenario S1: the deploy's holder also
// holds the source it wraps, and the deploy is accepted.
func TestValidateDeployHappyPath(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"source000i0","address":"bc1qDeployer","content_type":"image/png","height":100}`))
	})
	deps := newTestDeps(t, ord, nil)

	insc := upstream.Inscription{ID: "deployXXXi0", Address: "bc1qDeployer", Height: 200, Timestamp: time.Now()}
	payload := DeployPayload{SourceID: "source000i0", Name: "FOO", Max: "1000", Price: "0.001"}

	d, err := ValidateDeploy(context.Background(), deps, insc, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatal("expected deploy to be accepted")
	}
	if d.DeployerAddress != "bc1qDeployer" || d.MaxSupply != 1000 {
		t.Fatalf("got %+v", d)
	}
}

// TestValidateDeployRejectsHolderMismatch: the deployer does not own the
// source inscription, so the deploy must be silently rejected.
func TestValidateDeployRejectsHolderMismatch(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"source000i0","address":"bc1qSomeoneElse","content_type":"image/png","height":100}`))
	})
	deps := newTestDeps(t, ord, nil)

	insc := upstream.Inscription{ID: "deployXXXi0", Address: "bc1qDeployer", Height: 200, Timestamp: time.Now()}
	payload := DeployPayload{SourceID: "source000i0", Name: "FOO", Max: "1000", Price: "0.001"}

	d, err := ValidateDeploy(context.Background(), deps, insc, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Fatalf("expected rejection, got %+v", d)
	}
}

// TestValidateDeployRejectsDuplicateSourceID pins the uniqueness
// invariant on Deploy.SourceID.
func TestValidateDeployRejectsDuplicateSourceID(t *testing.T) {
	ord := newTestOrdinals(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"source000i0","address":"bc1qDeployer","content_type":"image/png","height":100}`))
	})
	deps := newTestDeps(t, ord, nil)
	payload := DeployPayload{SourceID: "source000i0", Name: "FOO", Max: "1000", Price: "0.001"}

	first := upstream.Inscription{ID: "deployOne", Address: "bc1qDeployer", Height: 200, Timestamp: time.Now()}
	d1, err := ValidateDeploy(context.Background(), deps, first, payload)
	if err != nil || d1 == nil {
		t.Fatalf("expected first deploy accepted: d=%+v err=%v", d1, err)
	}

	second := upstream.Inscription{ID: "deployTwo", Address: "bc1qDeployer", Height: 201, Timestamp: time.Now()}
	d2, err := ValidateDeploy(context.Background(), deps, second, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d2 != nil {
		t.Fatalf("expected second deploy with same source_id to be rejected, got %+v", d2)
	}
}

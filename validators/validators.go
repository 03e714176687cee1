// Package validators implements the protocol-specific acceptance rules for
// the four claim types the pipeline classifies an inscription into:
// BRC-420 deploy, BRC-420 mint, bitmap, and parcel.
//
// Every Validate* function returns (result, error). A nil result with a
// nil error means the candidate was evaluated and rejected by a protocol
// rule — not an error, and nothing is written. A non-nil error means the
// rule could not be evaluated at all (upstream unavailable, a decode
// failure) and the caller should retry rather than treat the inscription
// as invalid.
package validators

import (
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// Deps bundles the collaborators every validator needs, held by value so
// validators are free functions over explicit state rather than methods on
// an ambient global.
type Deps struct {
	Ordinals *upstream.OrdinalsClient
	Tx       *upstream.TxClient
	DB       *store.DB

	// Wallets coalesces every wallet-ownership write a validator makes on
	// acceptance into the shared size-50 batch (spec.md §4.3), rather than
	// each validator committing its own single-row transaction.
	Wallets *store.WalletBatcher
}

// Package transfer implements the Transfer Tracker (spec.md §4.8): after
// every block, it enumerates every stored entity and reconciles its
// current upstream holder against the address cached in the wallets
// table, recording any change it finds. A reconciliation failure for one
// inscription is logged and skipped; it never aborts the run.
package transfer

import (
	"context"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/adaptive"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/util/panics"
)

// Tracker reconciles current-holder addresses for every entity kind the
// wallets table tracks.
type Tracker struct {
	Ordinals    *upstream.OrdinalsClient
	DB          *store.DB
	Concurrency *adaptive.ConcurrencyManager
	Wallets     *store.WalletBatcher
	Log         btclog.Logger
}

// Run enumerates every stored wallet and reconciles it against the
// current upstream holder, dispatching concurrently under the shared
// adaptive limit. It is invoked as the pipeline's AfterBlock hook, once
// per processed block.
func (t *Tracker) Run(ctx context.Context, blockHeight int64) error {
	wallets, err := store.FetchAllWallets(t.DB.Root())
	if err != nil {
		return errors.Wrap(err, "transfer: fetch all wallets")
	}

	done := make(chan struct{}, len(wallets))
	spawn := panics.GoroutineWrapperFunc(t.Log)
	for i := range wallets {
		w := wallets[i]
		spawn(func() {
			defer func() { done <- struct{}{} }()

			if err := t.Concurrency.Acquire(ctx); err != nil {
				return
			}
			start := time.Now()
			changed, err := t.reconcileOne(ctx, w, blockHeight)
			t.Concurrency.Release()
			t.Concurrency.RecordResult(err == nil, time.Since(start))
			if err != nil {
				if t.Log != nil {
					t.Log.Warnf("transfer: reconcile %s failed: %s", w.InscriptionID, err)
				}
				return
			}
			if changed && t.Log != nil {
				t.Log.Debugf("transfer: %s changed holder", w.InscriptionID)
			}
		})
	}
	for range wallets {
		<-done
	}
	return errors.Wrap(t.Wallets.Flush(), "transfer: flush wallet batch")
}

// reconcileOne re-fetches the current upstream holder of w and, if it
// differs from the cached address, updates the entity-specific wallet
// column (for the two kinds that carry one), adds the updated wallets row
// to the shared wallet batcher (written on its next flush), and appends an
// address_history entry. It reports whether a change was
// found and recorded.
func (t *Tracker) reconcileOne(ctx context.Context, w model.Wallet, blockHeight int64) (bool, error) {
	current, err := t.Ordinals.Inscription(ctx, w.InscriptionID)
	if err != nil {
		return false, errors.Wrapf(err, "fetch inscription %s", w.InscriptionID)
	}
	if current.Address == w.Address {
		return false, nil
	}

	switch w.Kind {
	case model.KindBitmap:
		if err := store.UpdateBitmapWallet(t.DB.Root(), w.InscriptionID, current.Address); err != nil {
			return false, err
		}
	case model.KindParcel:
		if err := store.UpdateParcelWallet(t.DB.Root(), w.InscriptionID, current.Address); err != nil {
			return false, err
		}
	case model.KindDeploy, model.KindMint:
		// Deploys and mints have no mutable wallet column of their own;
		// only the wallets table and address history track their
		// current holder.
	}

	oldAddress := w.Address
	w.Address = current.Address
	w.UpdatedAt = time.Now()
	if err := t.Wallets.Add(w); err != nil {
		return false, err
	}

	history := &model.AddressHistory{
		InscriptionID: w.InscriptionID,
		OldAddress:    oldAddress,
		NewAddress:    current.Address,
		BlockHeight:   blockHeight,
	}
	if err := store.AppendAddressHistory(t.DB.Root(), history); err != nil {
		return false, err
	}
	return true, nil
}

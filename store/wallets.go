package store

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// FetchWallet returns the Wallet row for inscriptionID.
func FetchWallet(ctx Context, inscriptionID string) (*model.Wallet, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var w model.Wallet
	if err := accessor.Where("inscription_id = ?", inscriptionID).First(&w).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch wallet %s", inscriptionID)
	}
	return &w, nil
}

// UpsertWallet writes one wallet row immediately, outside the batcher.
// Every validator and the Transfer Tracker route real wallet writes
// through WalletBatcher.Add instead; this remains for callers (test
// seeding, one-off repairs) that need a write to land synchronously.
func UpsertWallet(ctx Context, w *model.Wallet) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	return errors.Wrapf(
		accessor.Save(w).Error,
		"store: upsert wallet %s", w.InscriptionID,
	)
}

// FetchWalletKindEntries returns the (inscription_id, address) pairs for
// every wallet of the given kind, used by the Transfer Tracker to
// enumerate entities to reconcile (spec.md §4.8).
func FetchWalletKindEntries(ctx Context, kind model.WalletKind) ([]model.Wallet, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var wallets []model.Wallet
	if err := accessor.Where("kind = ?", kind).Find(&wallets).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch wallets of kind %s", kind)
	}
	return wallets, nil
}

// FetchAllWallets returns every wallet row, used by the Transfer Tracker
// to enumerate every entity regardless of kind (spec.md §4.8: "enumerate
// every stored inscription with kind ∈ {deploy, mint, bitmap, parcel}").
func FetchAllWallets(ctx Context) ([]model.Wallet, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var wallets []model.Wallet
	if err := accessor.Find(&wallets).Error; err != nil {
		return nil, errors.Wrap(err, "store: fetch all wallets")
	}
	return wallets, nil
}

// WalletBatcher coalesces wallet upserts into batches of up to 50, flushed
// inside one transaction (spec.md §4.3: "A write batcher coalesces wallet
// upserts (size 50) ... flush writes them inside one transaction").
type WalletBatcher struct {
	mu      sync.Mutex
	db      *DB
	pending []model.Wallet

	batchSize int
}

// NewWalletBatcher builds a batcher over db with the spec's default batch
// size of 50.
func NewWalletBatcher(db *DB) *WalletBatcher {
	return &WalletBatcher{db: db, batchSize: 50}
}

// Add buffers w for the next flush, flushing immediately if the buffer has
// reached the batch size.
func (b *WalletBatcher) Add(w model.Wallet) error {
	b.mu.Lock()
	b.pending = append(b.pending, w)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if full {
		return b.Flush()
	}
	return nil
}

// Flush writes every buffered wallet inside one transaction and returns
// only once it is durable, per spec.md §4.3. It is also called at the end
// of every block (spec.md §4.5 step 6).
func (b *WalletBatcher) Flush() error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := b.db.NewTx()
	if err != nil {
		return err
	}
	defer tx.RollbackUnlessClosed()

	accessor, err := tx.accessor()
	if err != nil {
		return err
	}

	for i := range batch {
		if batch[i].UpdatedAt.IsZero() {
			batch[i].UpdatedAt = time.Now()
		}
		if err := accessor.Save(&batch[i]).Error; err != nil {
			return errors.Wrapf(err, "store: flush wallet %s", batch[i].InscriptionID)
		}
	}
	return tx.Commit()
}

// Pending returns the number of buffered, not-yet-flushed entries. Mainly
// for tests and diagnostics.
func (b *WalletBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

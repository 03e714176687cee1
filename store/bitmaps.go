package store

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// FetchBitmapByNumber returns the Bitmap claiming bitmapNumber, or
// IsNotFoundError(err) if none exists.
func FetchBitmapByNumber(ctx Context, bitmapNumber int64) (*model.Bitmap, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var b model.Bitmap
	if err := accessor.Where("bitmap_number = ?", bitmapNumber).First(&b).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch bitmap %d", bitmapNumber)
	}
	return &b, nil
}

// InsertBitmap inserts b, treating a duplicate bitmap_number or
// inscription_id as a benign no-op. It is the plain idempotent
// re-processing guard used by tests and seeding code; acceptance of a
// genuinely new claim goes through UpsertBitmapWithTieBreak instead.
func InsertBitmap(ctx Context, b *model.Bitmap) (inserted bool, err error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return false, err
	}
	result := accessor.Create(b)
	if result.Error != nil {
		if isUniqueConstraintErr(result.Error) {
			return false, nil
		}
		return false, errors.Wrapf(result.Error, "store: insert bitmap %s", b.InscriptionID)
	}
	return true, nil
}

// BitmapOutcome reports what UpsertBitmapWithTieBreak did with a
// candidate.
type BitmapOutcome int

const (
	// BitmapInserted means no bitmap existed yet for bitmap_number and
	// the candidate was inserted.
	BitmapInserted BitmapOutcome = iota
	// BitmapReplaced means an existing bitmap lost the tie-break and was
	// replaced by the candidate.
	BitmapReplaced
	// BitmapSkipped means an existing bitmap won the tie-break; the
	// candidate was discarded.
	BitmapSkipped
)

// earlierBitmap reports whether candidate is the earlier of the two per
// the tie-breaker rule in spec.md §3 ("bitmap_number unique across all
// bitmaps (first-seen wins by (block_height, inscription_id)
// lexicographic order)"): lower block_height, then lexicographically
// lower inscription_id.
func earlierBitmap(candidate, existing *model.Bitmap) bool {
	if candidate.BlockHeight != existing.BlockHeight {
		return candidate.BlockHeight < existing.BlockHeight
	}
	return candidate.InscriptionID < existing.InscriptionID
}

// UpsertBitmapWithTieBreak performs the select-then-insert-or-replace
// described in spec.md §3/§4.6.3 inside a single transaction, mirroring
// UpsertParcelWithTieBreak, so two concurrently validated claims for the
// same bitmap_number can never both survive and the earlier
// (block_height, inscription_id) always wins regardless of processing
// order.
func (db *DB) UpsertBitmapWithTieBreak(candidate *model.Bitmap) (BitmapOutcome, error) {
	tx, err := db.NewTx()
	if err != nil {
		return BitmapSkipped, err
	}
	defer tx.RollbackUnlessClosed()

	accessor, err := tx.accessor()
	if err != nil {
		return BitmapSkipped, err
	}

	var existing model.Bitmap
	err = accessor.Where("bitmap_number = ?", candidate.BitmapNumber).First(&existing).Error

	switch {
	case errors.Cause(err) == gorm.ErrRecordNotFound:
		if createErr := accessor.Create(candidate).Error; createErr != nil {
			if isUniqueConstraintErr(createErr) {
				// Lost a race with a concurrently committed insert;
				// re-run the comparison against what's there now.
				return db.resolveBitmapRaceLocked(accessor, tx, candidate)
			}
			return BitmapSkipped, errors.Wrap(createErr, "store: insert bitmap")
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return BitmapSkipped, commitErr
		}
		return BitmapInserted, nil

	case err != nil:
		return BitmapSkipped, errors.Wrap(err, "store: fetch existing bitmap for tie-break")
	}

	if !earlierBitmap(candidate, &existing) {
		if commitErr := tx.Commit(); commitErr != nil {
			return BitmapSkipped, commitErr
		}
		return BitmapSkipped, nil
	}

	if delErr := accessor.Delete(&existing).Error; delErr != nil {
		return BitmapSkipped, errors.Wrap(delErr, "store: delete displaced bitmap")
	}
	if createErr := accessor.Create(candidate).Error; createErr != nil {
		return BitmapSkipped, errors.Wrap(createErr, "store: insert winning bitmap")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return BitmapSkipped, commitErr
	}
	return BitmapReplaced, nil
}

func (db *DB) resolveBitmapRaceLocked(accessor *gorm.DB, tx *TxContext, candidate *model.Bitmap) (BitmapOutcome, error) {
	var existing model.Bitmap
	err := accessor.Where("bitmap_number = ?", candidate.BitmapNumber).First(&existing).Error
	if err != nil {
		return BitmapSkipped, errors.Wrap(err, "store: re-fetch after race")
	}
	if !earlierBitmap(candidate, &existing) {
		_ = tx.Commit()
		return BitmapSkipped, nil
	}
	if delErr := accessor.Delete(&existing).Error; delErr != nil {
		return BitmapSkipped, errors.Wrap(delErr, "store: delete displaced bitmap after race")
	}
	if createErr := accessor.Create(candidate).Error; createErr != nil {
		return BitmapSkipped, errors.Wrap(createErr, "store: insert winning bitmap after race")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return BitmapSkipped, commitErr
	}
	return BitmapReplaced, nil
}

// UpdateBitmapWallet overwrites the current-holder column on a bitmap row,
// called by the Transfer Tracker when a reconciliation detects the holder
// has changed. The original inscribing address column is left untouched.
func UpdateBitmapWallet(ctx Context, inscriptionID, newAddress string) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	return errors.Wrapf(
		accessor.Table("bitmaps").Where("inscription_id = ?", inscriptionID).
			Update("wallet", newAddress).Error,
		"store: update bitmap wallet %s", inscriptionID,
	)
}

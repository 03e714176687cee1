package store

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// ParcelOutcome reports what UpsertParcelWithTieBreak did with a candidate.
type ParcelOutcome int

const (
	// ParcelInserted means no parcel existed yet for (parcelNumber,
	// bitmapNumber) and the candidate was inserted.
	ParcelInserted ParcelOutcome = iota
	// ParcelReplaced means an existing parcel lost the tie-break and was
	// replaced by the candidate.
	ParcelReplaced
	// ParcelSkipped means an existing parcel won the tie-break; the
	// candidate was discarded.
	ParcelSkipped
)

// FetchBitmapParcelByNumber returns the parcel for (bitmapNumber,
// parcelNumber), or IsNotFoundError(err) if none exists.
func FetchBitmapParcelByNumber(ctx Context, bitmapNumber, parcelNumber int64) (*model.Parcel, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var p model.Parcel
	err = accessor.Where("bitmap_number = ? AND parcel_number = ?", bitmapNumber, parcelNumber).First(&p).Error
	if err != nil {
		return nil, errors.Wrapf(err, "store: fetch parcel %d.%d.bitmap", parcelNumber, bitmapNumber)
	}
	return &p, nil
}

// earlier reports whether candidate is the earlier of the two per the
// tie-breaker rule in spec.md §3/§4.6.4: lower block_height, then
// lexicographically lower inscription_id.
func earlier(candidate, existing *model.Parcel) bool {
	if candidate.BlockHeight != existing.BlockHeight {
		return candidate.BlockHeight < existing.BlockHeight
	}
	return candidate.InscriptionID < existing.InscriptionID
}

// UpsertParcelWithTieBreak performs the select-then-insert-or-replace
// described in spec.md §4.6.4 step 4 and §5 ("the sole exception is the
// parcel tie-breaker which is resolved within C3 atomically") inside a
// single transaction, so two concurrently validated parcels for the same
// (parcel_number, bitmap_number) can never both survive.
func (db *DB) UpsertParcelWithTieBreak(candidate *model.Parcel) (ParcelOutcome, error) {
	tx, err := db.NewTx()
	if err != nil {
		return ParcelSkipped, err
	}
	defer tx.RollbackUnlessClosed()

	accessor, err := tx.accessor()
	if err != nil {
		return ParcelSkipped, err
	}

	var existing model.Parcel
	err = accessor.Where("bitmap_number = ? AND parcel_number = ?", candidate.BitmapNumber, candidate.ParcelNumber).
		First(&existing).Error

	switch {
	case errors.Cause(err) == gorm.ErrRecordNotFound:
		if createErr := accessor.Create(candidate).Error; createErr != nil {
			if isUniqueConstraintErr(createErr) {
				// Lost a race with a concurrently committed insert;
				// re-run the comparison against what's there now.
				return db.resolveRaceLocked(accessor, tx, candidate)
			}
			return ParcelSkipped, errors.Wrap(createErr, "store: insert parcel")
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return ParcelSkipped, commitErr
		}
		return ParcelInserted, nil

	case err != nil:
		return ParcelSkipped, errors.Wrap(err, "store: fetch existing parcel for tie-break")
	}

	if !earlier(candidate, &existing) {
		if commitErr := tx.Commit(); commitErr != nil {
			return ParcelSkipped, commitErr
		}
		return ParcelSkipped, nil
	}

	if delErr := accessor.Delete(&existing).Error; delErr != nil {
		return ParcelSkipped, errors.Wrap(delErr, "store: delete displaced parcel")
	}
	if createErr := accessor.Create(candidate).Error; createErr != nil {
		return ParcelSkipped, errors.Wrap(createErr, "store: insert winning parcel")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return ParcelSkipped, commitErr
	}
	return ParcelReplaced, nil
}

// UpdateParcelWallet overwrites the current-holder column on a parcel row,
// called by the Transfer Tracker when a reconciliation detects the holder
// has changed. The original inscribing address column is left untouched.
func UpdateParcelWallet(ctx Context, inscriptionID, newAddress string) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	return errors.Wrapf(
		accessor.Table("parcels").Where("inscription_id = ?", inscriptionID).
			Update("wallet", newAddress).Error,
		"store: update parcel wallet %s", inscriptionID,
	)
}

func (db *DB) resolveRaceLocked(accessor *gorm.DB, tx *TxContext, candidate *model.Parcel) (ParcelOutcome, error) {
	var existing model.Parcel
	err := accessor.Where("bitmap_number = ? AND parcel_number = ?", candidate.BitmapNumber, candidate.ParcelNumber).
		First(&existing).Error
	if err != nil {
		return ParcelSkipped, errors.Wrap(err, "store: re-fetch after race")
	}
	if !earlier(candidate, &existing) {
		_ = tx.Commit()
		return ParcelSkipped, nil
	}
	if delErr := accessor.Delete(&existing).Error; delErr != nil {
		return ParcelSkipped, errors.Wrap(delErr, "store: delete displaced parcel after race")
	}
	if createErr := accessor.Create(candidate).Error; createErr != nil {
		return ParcelSkipped, errors.Wrap(createErr, "store: insert winning parcel after race")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return ParcelSkipped, commitErr
	}
	return ParcelReplaced, nil
}

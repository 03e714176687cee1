package store

import (
	"time"

	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// WriteBlockStats records the per-block counters at the end of C5 (spec.md
// §4.5 step 6).
func WriteBlockStats(ctx Context, stats *model.BlockStats) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	if stats.ProcessedAt.IsZero() {
		stats.ProcessedAt = time.Now()
	}
	return errors.Wrapf(accessor.Save(stats).Error, "store: write block stats %d", stats.BlockHeight)
}

// InsertFailedInscription records a terminal per-inscription failure
// (spec.md §4.5 step 5).
func InsertFailedInscription(ctx Context, fi *model.FailedInscription) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	if fi.FailedAt.IsZero() {
		fi.FailedAt = time.Now()
	}
	result := accessor.Create(fi)
	if result.Error != nil && !isUniqueConstraintErr(result.Error) {
		return errors.Wrapf(result.Error, "store: insert failed inscription %s", fi.InscriptionID)
	}
	return nil
}

// AppendAddressHistory appends one ownership-change row. The Transfer
// Tracker is the sole writer of this table (spec.md §3).
func AppendAddressHistory(ctx Context, h *model.AddressHistory) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}
	return errors.Wrap(accessor.Create(h).Error, "store: append address history")
}

// UpsertBitmapPattern stores the computed pattern for a bitmap (spec.md
// §4.9 step 3).
func UpsertBitmapPattern(ctx Context, p *model.BitmapPattern) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	return errors.Wrapf(accessor.Save(p).Error, "store: upsert bitmap pattern %d", p.BitmapNumber)
}

// FetchBitmapPattern returns the pattern stored for bitmapNumber, or
// IsNotFoundError(err) if none has been generated yet.
func FetchBitmapPattern(ctx Context, bitmapNumber int64) (*model.BitmapPattern, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var p model.BitmapPattern
	if err := accessor.Where("bitmap_number = ?", bitmapNumber).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch bitmap pattern %d", bitmapNumber)
	}
	return &p, nil
}

package store

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// FetchBlock returns the Block row for height, or IsNotFoundError(err) if
// scanning hasn't reached it yet.
func FetchBlock(ctx Context, height int64) (*model.Block, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var b model.Block
	if err := accessor.Where("block_height = ?", height).First(&b).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch block %d", height)
	}
	return &b, nil
}

// HighestProcessedBlock returns the greatest block_height with
// processed=true, used to resume scanning at height+1 (spec.md §4.7,
// invariant 6).
func HighestProcessedBlock(ctx Context) (int64, bool, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return 0, false, err
	}
	var b model.Block
	err = accessor.Where("processed = ?", true).Order("block_height DESC").First(&b).Error
	if errors.Cause(err) == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "store: highest processed block")
	}
	return b.BlockHeight, true, nil
}

// MarkBlockProcessed idempotently marks height as processed.
func MarkBlockProcessed(ctx Context, height int64) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	now := time.Now()
	b := model.Block{BlockHeight: height, Processed: true, ProcessedAt: &now}
	return errors.Wrapf(accessor.Save(&b).Error, "store: mark block %d processed", height)
}

// FetchDueErrorBlocks returns every ErrorBlock eligible for retry, i.e.
// retry_at <= currentBlock (spec.md §4.7 step 1).
func FetchDueErrorBlocks(ctx Context, currentBlock int64) ([]model.ErrorBlock, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var blocks []model.ErrorBlock
	if err := accessor.Where("retry_at <= ?", currentBlock).Find(&blocks).Error; err != nil {
		return nil, errors.Wrap(err, "store: fetch due error blocks")
	}
	return blocks, nil
}

// UpsertErrorBlock records or updates a block's failure, scheduling a
// retry at height+retryDelay and incrementing retry_count (spec.md §4.7
// step 4).
func UpsertErrorBlock(ctx Context, height int64, errMsg string, retryDelay int64) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	var existing model.ErrorBlock
	err = accessor.Where("block_height = ?", height).First(&existing).Error
	switch {
	case errors.Cause(err) == gorm.ErrRecordNotFound:
		eb := model.ErrorBlock{BlockHeight: height, ErrorMessage: errMsg, RetryCount: 0, RetryAt: height + retryDelay}
		return errors.Wrap(accessor.Create(&eb).Error, "store: insert error block")
	case err != nil:
		return errors.Wrap(err, "store: fetch error block")
	}
	existing.ErrorMessage = errMsg
	existing.RetryCount++
	existing.RetryAt = height + retryDelay
	return errors.Wrap(accessor.Save(&existing).Error, "store: update error block")
}

// RemoveErrorBlock deletes the ErrorBlock row for height, after a
// successful retry (spec.md §4.7 step 1, "on success remove the row").
func RemoveErrorBlock(ctx Context, height int64) error {
	accessor, err := ctx.accessor()
	if err != nil {
		return err
	}
	return errors.Wrap(
		accessor.Where("block_height = ?", height).Delete(&model.ErrorBlock{}).Error,
		"store: remove error block",
	)
}

// Package pattern computes the transaction-size-class pattern recorded
// against a bitmap once it is committed: every transaction in the
// bitmap's claimed block is bucketed by its total output value into one
// of nine size classes, and the buckets are concatenated in block order
// into a single digit string.
package pattern

import (
	"context"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// valueThresholdsBTC are the upper bounds, in BTC, of size classes 1..8;
// any transaction with a greater total output value falls into class 9.
var valueThresholdsBTC = [8]float64{0.01, 0.1, 1, 10, 100, 1000, 10000, 100000}

// bucketDigit classifies one transaction's total output value, in
// satoshis, into its size class digit ('1'..'9').
func bucketDigit(valueSats int64) byte {
	valueBTC := float64(valueSats) / float64(model.SatsPerBTC)
	for i, threshold := range valueThresholdsBTC {
		if valueBTC <= threshold {
			return byte('1' + i)
		}
	}
	return '9'
}

// Generator computes and persists bitmap patterns.
type Generator struct {
	Tx             *upstream.TxClient
	DB             *store.DB
	AllowSynthetic bool
}

// Generate computes the pattern for the block a bitmap claims and upserts
// it. If the upstream block response omits its transaction id list,
// generation is skipped unless AllowSynthetic is set, in which case a
// random (explicitly non-reproducible) pattern of the block's reported
// length is stored instead.
func (g *Generator) Generate(ctx context.Context, bitmapNumber, blockHeight int64) error {
	hash, err := g.Tx.BlockHeightToHash(ctx, blockHeight)
	if err != nil {
		return err
	}
	block, err := g.Tx.Block(ctx, hash)
	if err != nil {
		return err
	}

	if len(block.TxIDs) == 0 {
		if !g.AllowSynthetic {
			return nil
		}
		if block.TxCount == nil {
			return errors.Errorf("pattern: cannot synthesize a pattern for bitmap %d with unknown transaction count", bitmapNumber)
		}
		return g.storeSynthetic(bitmapNumber, *block.TxCount)
	}

	var digits strings.Builder
	for _, txid := range block.TxIDs {
		tx, err := g.Tx.Tx(ctx, txid)
		if err != nil {
			return err
		}
		digits.WriteByte(bucketDigit(tx.TotalOutputValue()))
	}

	return store.UpsertBitmapPattern(g.DB.Root(), &model.BitmapPattern{
		BitmapNumber: bitmapNumber,
		Pattern:      digits.String(),
		Synthetic:    false,
	})
}

// storeSynthetic stores a non-reproducible placeholder pattern. Its digits
// carry no information about the block's actual transactions; it exists
// only so downstream consumers see a pattern of the expected length rather
// than a missing row.
func (g *Generator) storeSynthetic(bitmapNumber, txCount int64) error {
	if txCount <= 0 {
		return errors.Errorf("pattern: cannot synthesize a pattern for bitmap %d with unknown transaction count", bitmapNumber)
	}
	digits := make([]byte, txCount)
	for i := range digits {
		digits[i] = byte('1' + rand.Intn(9))
	}
	return store.UpsertBitmapPattern(g.DB.Root(), &model.BitmapPattern{
		BitmapNumber: bitmapNumber,
		Pattern:      string(digits),
		Synthetic:    true,
	})
}

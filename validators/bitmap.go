package validators

import (
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// ValidateBitmap applies the bitmap acceptance rule: the claimed block
// number must already exist on chain at the time of inscription, and ties
// between concurrently seen claims for the same bitmap_number are broken
// atomically by the store in (block_height, inscription_id) lexicographic
// order — first-seen by chain order, not by processing arrival order.
func ValidateBitmap(deps Deps, insc upstream.Inscription, bitmapNumber int64) (*model.Bitmap, error) {
	if bitmapNumber > insc.Height {
		return nil, nil // claims a block that didn't exist yet
	}

	candidate := &model.Bitmap{
		InscriptionID: insc.ID,
		BitmapNumber:  bitmapNumber,
		Content:       model.CanonicalBitmapContent(bitmapNumber),
		Address:       insc.Address,
		BlockHeight:   insc.Height,
		Timestamp:     insc.Timestamp,
		Sat:           insc.Sat,
		Wallet:        insc.Address,
	}

	outcome, err := deps.DB.UpsertBitmapWithTieBreak(candidate)
	if err != nil {
		return nil, err
	}
	if outcome == store.BitmapSkipped {
		return nil, nil // an earlier (or already-committed) claim won the tie-break
	}

	if err := deps.Wallets.Add(model.Wallet{
		InscriptionID: candidate.InscriptionID,
		Address:       insc.Address,
		Kind:          model.KindBitmap,
		UpdatedAt:     insc.Timestamp,
	}); err != nil {
		return nil, err
	}

	return candidate, nil
}

package validators

import (
	"context"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// ValidateParcel applies the parcel acceptance rule: the parent bitmap
// must exist, the parcel inscription must be a genuine on-chain child of
// that bitmap, the parcel number must fall within the bitmap's own block's
// transaction count, and ties between concurrently seen parcels for the
// same (bitmap, parcel number) are broken atomically by the store.
func ValidateParcel(ctx context.Context, deps Deps, insc upstream.Inscription, parcelNumber, bitmapNumber int64) (*model.Parcel, store.ParcelOutcome, error) {
	bitmap, err := store.FetchBitmapByNumber(deps.DB.Root(), bitmapNumber)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ParcelSkipped, nil // parent bitmap doesn't exist
		}
		return nil, store.ParcelSkipped, err
	}

	children, err := deps.Ordinals.Children(ctx, bitmap.InscriptionID)
	if err != nil {
		return nil, store.ParcelSkipped, err
	}
	if !containsID(children.IDs, insc.ID) {
		return nil, store.ParcelSkipped, nil // not a genuine child of the bitmap
	}

	txCount, err := deps.Tx.TransactionCountAtHeight(ctx, bitmap.BlockHeight)
	if err != nil {
		return nil, store.ParcelSkipped, err
	}
	// spec.md §4.6.4 step 3: if the block's transaction count is known,
	// the parcel number must fall within it; if it is unknown (txCount
	// nil), accept tentatively and record transaction_count as null
	// rather than rejecting on a false zero.
	if txCount != nil && (parcelNumber < 0 || parcelNumber >= *txCount) {
		return nil, store.ParcelSkipped, nil // out of range for the bitmap's own block
	}
	if txCount == nil && parcelNumber < 0 {
		return nil, store.ParcelSkipped, nil // negative parcel numbers are never valid
	}

	candidate := &model.Parcel{
		InscriptionID:       insc.ID,
		ParcelNumber:        parcelNumber,
		BitmapNumber:        bitmapNumber,
		BitmapInscriptionID: bitmap.InscriptionID,
		Content:             model.CanonicalParcelContent(parcelNumber, bitmapNumber),
		Address:             insc.Address,
		BlockHeight:         insc.Height,
		Timestamp:           insc.Timestamp,
		TransactionCount:    txCount,
		Wallet:              insc.Address,
	}

	outcome, err := deps.DB.UpsertParcelWithTieBreak(candidate)
	if err != nil {
		return nil, store.ParcelSkipped, err
	}
	if outcome == store.ParcelSkipped {
		return nil, outcome, nil
	}

	if err := deps.Wallets.Add(model.Wallet{
		InscriptionID: candidate.InscriptionID,
		Address:       insc.Address,
		Kind:          model.KindParcel,
		UpdatedAt:     insc.Timestamp,
	}); err != nil {
		return nil, outcome, err
	}

	return candidate, outcome, nil
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

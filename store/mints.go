package store

import (
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// InsertMint inserts m, treating a duplicate id as a benign no-op.
func InsertMint(ctx Context, m *model.Mint) (inserted bool, err error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return false, err
	}
	result := accessor.Create(m)
	if result.Error != nil {
		if isUniqueConstraintErr(result.Error) {
			return false, nil
		}
		return false, errors.Wrapf(result.Error, "store: insert mint %s", m.ID)
	}
	return true, nil
}

// FetchMintByID returns the Mint with the given inscription id.
func FetchMintByID(ctx Context, id string) (*model.Mint, error) {
	accessor, err := ctx.accessor()
	if err != nil {
		return nil, err
	}
	var m model.Mint
	if err := accessor.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, errors.Wrapf(err, "store: fetch mint %s", id)
	}
	return &m, nil
}

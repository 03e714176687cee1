package validators

import (
	"context"
	"strings"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// ValidateMint applies the BRC-420 mint acceptance rule: the referenced
// deploy must exist, the mint's royalty payment to the deployer must meet
// or exceed the deploy's price, the mint's content type must match the
// source it mints, and the deploy's max supply must not yet be reached.
func ValidateMint(ctx context.Context, deps Deps, insc upstream.Inscription, deployID string) (*model.Mint, error) {
	deploy, err := store.FetchDeployByID(deps.DB.Root(), deployID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil // references a deploy that doesn't exist
		}
		return nil, err
	}

	mintAddress := insc.Address

	mintTxID, err := model.MintTxID(insc.ID)
	if err != nil {
		return nil, nil // malformed inscription id: reject, don't error
	}

	tx, err := deps.Tx.Tx(ctx, mintTxID)
	if err != nil {
		return nil, err
	}

	expectedSats, err := model.BTCToSats(deploy.PriceBTC)
	if err != nil {
		return nil, err // the deploy row is malformed, not the mint: a real error
	}
	paidSats := tx.SumOutputsTo(deploy.DeployerAddress)
	if paidSats < expectedSats {
		return nil, nil // insufficient royalty
	}

	source, err := deps.Ordinals.Inscription(ctx, deploy.SourceID)
	if err != nil {
		return nil, err
	}
	if !contentTypesMatch(insc.ContentType, source.ContentType) {
		return nil, nil // mint's content type does not match the source it mints
	}

	count, err := store.CountMintsForDeploy(deps.DB.Root(), deploy.ID)
	if err != nil {
		return nil, err
	}
	if count >= deploy.MaxSupply {
		return nil, nil // supply cap reached
	}

	m := &model.Mint{
		ID:            insc.ID,
		DeployID:      deploy.ID,
		SourceID:      deploy.SourceID,
		MintAddress:   mintAddress,
		TransactionID: mintTxID,
		BlockHeight:   insc.Height,
		Timestamp:     insc.Timestamp,
	}

	inserted, err := store.InsertMint(deps.DB.Root(), m)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil // lost a race with a concurrently processed duplicate
	}

	if err := deps.Wallets.Add(model.Wallet{
		InscriptionID: m.ID,
		Address:       mintAddress,
		Kind:          model.KindMint,
		UpdatedAt:     insc.Timestamp,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// contentTypesMatch compares MIME types ignoring any parameters (e.g.
// "text/plain;charset=utf-8" matches "text/plain").
func contentTypesMatch(a, b string) bool {
	base := func(ct string) string {
		ct, _, _ = strings.Cut(ct, ";")
		return strings.TrimSpace(ct)
	}
	return base(a) == base(b)
}

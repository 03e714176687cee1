package validators

import (
	"context"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// ValidateDeploy applies the BRC-420 deploy acceptance rule: the deploy
// inscription's holder must also hold the source inscription it wraps, and
// its source id must not already be deployed.
func ValidateDeploy(ctx context.Context, deps Deps, insc upstream.Inscription, payload DeployPayload) (*model.Deploy, error) {
	source, err := deps.Ordinals.Inscription(ctx, payload.SourceID)
	if err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil // source doesn't exist: not a valid deploy
		}
		return nil, err
	}

	deployerAddress := insc.Address
	if source.Address != deployerAddress {
		return nil, nil // holder mismatch: the deployer does not own the source
	}

	existing, err := store.FetchDeployBySourceID(deps.DB.Root(), payload.SourceID)
	if err != nil && !store.IsNotFoundError(err) {
		return nil, err
	}
	if existing != nil {
		return nil, nil // source already deployed
	}

	if _, err := model.ParsePositiveInt(payload.Max); err != nil {
		return nil, nil // malformed max supply: reject, don't error
	}
	if _, err := model.BTCToSats(payload.Price); err != nil {
		return nil, nil // malformed price: reject, don't error
	}
	maxSupply, _ := model.ParsePositiveInt(payload.Max)

	d := &model.Deploy{
		ID:              insc.ID,
		SourceID:        payload.SourceID,
		Name:            payload.Name,
		MaxSupply:       maxSupply,
		PriceBTC:        payload.Price,
		DeployerAddress: deployerAddress,
		BlockHeight:     insc.Height,
		Timestamp:       insc.Timestamp,
	}

	inserted, err := store.InsertDeploy(deps.DB.Root(), d)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil // lost a race with a concurrently processed duplicate
	}

	if err := deps.Wallets.Add(model.Wallet{
		InscriptionID: d.ID,
		Address:       deployerAddress,
		Kind:          model.KindDeploy,
		UpdatedAt:     insc.Timestamp,
	}); err != nil {
		return nil, err
	}

	return d, nil
}

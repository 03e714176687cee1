package validators

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// DeployPayload is the JSON body of a BRC-420 deploy inscription.
type DeployPayload struct {
	SourceID string `json:"id"`
	Name     string `json:"name"`
	Max      string `json:"max"`
	Price    string `json:"price"`
}

// ParseDeployPayload decodes and schema-checks a deploy inscription's
// content. A missing id/name/max/price is a schema failure, reported as an
// error rather than a silent reject, since it means the upstream body
// could not be understood at all.
func ParseDeployPayload(content []byte) (DeployPayload, error) {
	var p DeployPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return DeployPayload{}, errors.Wrap(err, "validators: decode deploy payload")
	}
	if p.SourceID == "" || p.Name == "" || p.Max == "" || p.Price == "" {
		return DeployPayload{}, errors.New("validators: deploy payload missing required field")
	}
	return p, nil
}

// mintReferencePrefix is the path form a mint inscription's content takes:
// a plain-text pointer at the deploy it mints against.
const mintReferencePrefix = "/content/"

// ParseMintReference extracts the deploy inscription id a mint inscription
// points at from its raw content body.
func ParseMintReference(content []byte) (deployID string, err error) {
	s := strings.TrimSpace(string(content))
	if !strings.HasPrefix(s, mintReferencePrefix) {
		return "", errors.Errorf("validators: mint content %q is not a deploy reference", s)
	}
	deployID = strings.TrimPrefix(s, mintReferencePrefix)
	if deployID == "" {
		return "", errors.New("validators: empty mint reference")
	}
	return deployID, nil
}

// bitmapSuffix is the fixed textual suffix every bitmap inscription's
// content ends with.
const bitmapSuffix = ".bitmap"

// ParseBitmapNumber extracts and canonically validates the block number
// claimed by a bitmap inscription's content, e.g. "792000.bitmap".
func ParseBitmapNumber(content []byte) (int64, error) {
	s := strings.TrimSpace(string(content))
	if !strings.HasSuffix(s, bitmapSuffix) {
		return 0, errors.Errorf("validators: %q is not a bitmap claim", s)
	}
	return model.ParsePositiveInt(strings.TrimSuffix(s, bitmapSuffix))
}

// ParseParcelContent extracts the (parcelNumber, bitmapNumber) pair from a
// parcel inscription's content, e.g. "3.792000.bitmap".
func ParseParcelContent(content []byte) (parcelNumber, bitmapNumber int64, err error) {
	s := strings.TrimSpace(string(content))
	if !strings.HasSuffix(s, bitmapSuffix) {
		return 0, 0, errors.Errorf("validators: %q is not a parcel claim", s)
	}
	trimmed := strings.TrimSuffix(s, bitmapSuffix)
	parts := strings.Split(trimmed, ".")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("validators: %q is not a <parcel>.<bitmap>.bitmap claim", s)
	}
	parcelNumber, err = model.ParsePositiveInt(parts[0])
	if err != nil {
		return 0, 0, err
	}
	bitmapNumber, err = model.ParsePositiveInt(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return parcelNumber, bitmapNumber, nil
}

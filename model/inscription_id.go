package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseInscriptionID splits a canonical "<txid>i<index>" inscription id into
// its transaction id and zero-based index.
//
// REDESIGN FLAG (spec.md §9 open question 2): the source's
// convertInscriptionIdToTxId dropped exactly one trailing character after
// "i", which silently mis-maps any inscription with index >= 10. This parses
// the full trailing run of digits as an integer instead.
func ParseInscriptionID(id string) (txid string, index int, err error) {
	i := strings.LastIndexByte(id, 'i')
	if i <= 0 || i == len(id)-1 {
		return "", 0, errors.Errorf("malformed inscription id %q", id)
	}
	idx, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, errors.Wrapf(err, "malformed inscription index in %q", id)
	}
	return id[:i], idx, nil
}

// MintTxID returns the transaction id a BRC-420 mint inscription's royalty
// payment must be found in, i.e. the txid component of the mint's own
// inscription id (spec.md §4.6.2 step 3: convert(id)).
func MintTxID(mintInscriptionID string) (string, error) {
	txid, _, err := ParseInscriptionID(mintInscriptionID)
	return txid, err
}

// CanonicalChildID reconstructs the canonical id of the zeroth child of a
// single-output inscription transaction, used by the convert round-trip law
// in spec.md §8: convert(id) -> txid, then concat(txid, "i0").
func CanonicalChildID(txid string) string {
	return txid + "i0"
}

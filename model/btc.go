package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 100_000_000

// BTCToSats converts an 8-decimal-place BTC amount, given as the decimal
// string stored on Deploy.PriceBTC, into an integer satoshi amount, rounding
// down as spec.md §3 requires ("price_btc (positive decimal, 8-place)" /
// §4.6.2 "Expected = floor(Deploy.price_btc · 1e8)").
//
// The conversion is done on the decimal string directly rather than via
// float64 so that a value like 0.00000001 BTC is never lost to floating
// point rounding before the floor is applied (spec.md §9 open question 1).
func BTCToSats(priceBTC string) (int64, error) {
	s := strings.TrimSpace(priceBTC)
	if s == "" {
		return 0, errors.New("empty price")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		return 0, errors.Errorf("negative price %q", priceBTC)
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !hasFrac {
		frac = ""
	}
	if len(frac) > 8 {
		frac = frac[:8] // truncate (floor) any precision beyond 8 places
	}
	for len(frac) < 8 {
		frac += "0"
	}
	wholeN, err := strconv.ParseInt(whole, 10, 63)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid price %q", priceBTC)
	}
	fracN, err := strconv.ParseInt(frac, 10, 63)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid price %q", priceBTC)
	}
	return wholeN*SatsPerBTC + fracN, nil
}

// ParsePositiveInt validates and parses a canonical non-negative integer
// string: no leading zeros except the literal "0" (spec.md §4.5 step 3,
// bitmap/parcel number parsing).
func ParsePositiveInt(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty number")
	}
	if s != "0" && strings.HasPrefix(s, "0") {
		return 0, errors.Errorf("non-canonical leading zero in %q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("non-digit in %q", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 63)
	if err != nil {
		return 0, errors.Wrapf(err, "number out of range %q", s)
	}
	return n, nil
}

package model

import "strconv"

// CanonicalBitmapContent formats a bitmap's claimed block number the way
// bitmap inscriptions encode it on-chain: "<number>.bitmap".
func CanonicalBitmapContent(bitmapNumber int64) string {
	return strconv.FormatInt(bitmapNumber, 10) + ".bitmap"
}

// CanonicalParcelContent formats a parcel's (parcel, bitmap) pair the way
// parcel inscriptions encode it on-chain: "<parcel>.<bitmap>.bitmap".
func CanonicalParcelContent(parcelNumber, bitmapNumber int64) string {
	return strconv.FormatInt(parcelNumber, 10) + "." + strconv.FormatInt(bitmapNumber, 10) + ".bitmap"
}

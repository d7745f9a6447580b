package store

import "strconv"

// DeriveID maps a UUID (or any hex-prefixed native identifier) to a stable
// numeric id in the 32-bit range by parsing its first 8 hex characters. The
// derivation is deterministic for the lifetime of the record. Collisions
// follow the birthday bound of a 2^32 space: fine for moderate record counts,
// not a cryptographic guarantee.
func DeriveID(nativeID string) int64 {
	hex := make([]byte, 0, 8)
	for i := 0; i < len(nativeID) && len(hex) < 8; i++ {
		c := nativeID[i]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' {
			hex = append(hex, c)
		}
	}
	n, err := strconv.ParseInt(string(hex), 16, 64)
	if err != nil {
		return 0
	}
	return n
}

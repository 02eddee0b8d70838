package audit

import "strconv"

// Fingerprint folds a string into a short base-36 correlation key using
// order-sensitive character-code accumulation. Not a security primitive —
// only a low-cardinality key for grouping entries from one session.
func Fingerprint(s string) string {
	var h uint64
	for _, r := range s {
		h = h*31 + uint64(r)
	}

	return strconv.FormatUint(h, 36)
}

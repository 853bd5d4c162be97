package fake

import "strconv"

// encodeInt renders n the way Redis stores an integer value, as its decimal
// string representation.
func encodeInt(n int64) (b []byte) {
	return []byte(strconv.FormatInt(n, 10))
}

// decodeInt parses b as a decimal integer, the way Redis does for INCR.
func decodeInt(b []byte) (n int64, err error) {
	return strconv.ParseInt(string(b), 10, 64)
}

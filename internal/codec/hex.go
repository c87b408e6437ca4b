package codec

import (
	"encoding/hex"
	"errors"
)

// ErrMalformedHex is returned by DecodeHex when the input is odd-length or
// contains non-hexadecimal characters.
var ErrMalformedHex = errors.New("malformed hex input")

// EncodeHex renders b as lowercase hex, two characters per byte.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex parses an even-length lowercase hex string back into bytes.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrMalformedHex
	}
	return b, nil
}

package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key builds a guard key: scope, a colon, then the first 16 bytes of the sha256 of parts, hex encoded.
// Parts are separated by a unit separator so ("ab", "c") and ("a", "bc") differ.
func Key(scope string, parts ...any) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		fmt.Fprint(h, part)
	}
	return scope + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

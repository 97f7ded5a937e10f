package record

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// OpDigest produces a stable hex digest of an operation's inputs for the
// audit journal. The digest lets a later verification pass confirm that a
// journaled mutation corresponds to the row it produced, without storing
// the (possibly large) blobs twice.
//
// String inputs are NFC normalized before hashing so that visually
// identical identities hash identically regardless of the Unicode form
// the transport delivered.
func OpDigest(kind string, caller Identity, blobs ...[]byte) string {
	h := sha256.New()
	writeNormalized(h, kind)
	writeNormalized(h, string(caller))
	for _, b := range blobs {
		// Length prefix keeps blob boundaries unambiguous.
		var lenBuf [8]byte
		n := len(b)
		for i := 7; i >= 0; i-- {
			lenBuf[i] = byte(n)
			n >>= 8
		}
		h.Write(lenBuf[:])
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeNormalized(h interface{ Write([]byte) (int, error) }, s string) {
	normalized := norm.NFC.String(s)
	var lenBuf [8]byte
	n := len(normalized)
	for i := 7; i >= 0; i-- {
		lenBuf[i] = byte(n)
		n >>= 8
	}
	h.Write(lenBuf[:])
	h.Write([]byte(normalized))
}

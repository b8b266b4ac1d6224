package kb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint computes a deterministic identity for a document set.
// It is stored alongside the index artifacts at build time; a mismatch
// between the stored fingerprint and the current document set marks the
// index as stale.
//
// The fingerprint covers document ids and sizes, sorted by id, so it is
// independent of upload order.
func Fingerprint(docs []Document) string {
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, fmt.Sprintf("%s:%d", d.ID, d.SizeBytes))
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

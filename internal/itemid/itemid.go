// Package itemid derives stable timeline item ids from a source and its native id.
package itemid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const prefix = "item:"

// ItemID returns the id for the item identified by nativeID within source.
// The same pair always yields the same id, so re-fetching an item upserts it in place.
func ItemID(source, nativeID string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(nativeID)))
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether id has the shape produced by ItemID.
func Valid(id string) bool {
	if !strings.HasPrefix(id, prefix) {
		return false
	}
	_, err := hex.DecodeString(id[len(prefix):])
	return err == nil && len(id) == len(prefix)+sha256.Size*2
}

package blobgate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// StorageKey derives the physical storage key for a blob identifier.
//
// The key is "data/<h[0:2]>/<h[2:4]>/<h>__<id>" where h is the hex SHA-256 of
// the identifier. The two-level fan-out keeps any single directory or bucket
// prefix from hot-spotting, the hash makes the key safe regardless of what the
// identifier contains, and the trailing raw id keeps keys operator-readable.
// Same id always yields the same key; distinct ids practically never collide.
func StorageKey(id string) string {
	h := sha256.Sum256([]byte(id))
	digest := hex.EncodeToString(h[:])
	return fmt.Sprintf("data/%s/%s/%s__%s", digest[0:2], digest[2:4], digest, id)
}

// ChecksumHex returns the hex SHA-256 digest of data. This is the checksum
// recorded in blob metadata, computed before any storage write.
func ChecksumHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

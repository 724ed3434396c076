package importer

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// contentHash digests raw bundle bytes for the checksum gate.
func contentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

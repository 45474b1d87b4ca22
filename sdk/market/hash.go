package market

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// ContentHash commits to a plaintext answer so buyers can verify what they
// decrypted matches what the creator published.
func ContentHash(plaintext []byte) [32]byte {
	return blake3.Sum256(plaintext)
}

// ContentHashHex formats the commitment the way qa_createQuestion expects it.
func ContentHashHex(plaintext []byte) string {
	sum := ContentHash(plaintext)
	return "0x" + hex.EncodeToString(sum[:])
}

// VerifyContent checks a decrypted answer against a question's stored
// commitment.
func VerifyContent(plaintext []byte, contentHashHex string) bool {
	return ContentHashHex(plaintext) == contentHashHex
}

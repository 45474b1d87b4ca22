package market

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Record addresses are derived deterministically from a fixed tag plus
// ordered seeds, so re-deriving with the same seeds always lands on the same
// slot. Creating a record claims its slot exclusively; a second creation at
// the same address fails instead of overwriting.
const (
	tagMarketplace = "marketplace"
	tagUserState   = "user_state"
	tagQuestion    = "question"
	tagUnlockKey   = "unlock_key"
)

func deriveAddress(tag string, seeds ...[]byte) [32]byte {
	buf := []byte(tag)
	for _, seed := range seeds {
		buf = append(buf, seed...)
	}
	var addr [32]byte
	copy(addr[:], ethcrypto.Keccak256(buf))
	return addr
}

func leUint64(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

// MarketplaceAddress derives the singleton marketplace slot for an authority.
func MarketplaceAddress(authority [20]byte) [32]byte {
	return deriveAddress(tagMarketplace, authority[:])
}

// UserStateAddress derives the per-participant record slot.
func UserStateAddress(owner [20]byte) [32]byte {
	return deriveAddress(tagUserState, owner[:])
}

// QuestionAddress derives a question slot from the marketplace it belongs to
// and its creation-order index.
func QuestionAddress(marketplace [32]byte, index uint64) [32]byte {
	return deriveAddress(tagQuestion, marketplace[:], leUint64(index))
}

// UnlockKeyAddress derives an unlock-key slot from its question and the
// issuance-order token id.
func UnlockKeyAddress(question [32]byte, tokenID uint64) [32]byte {
	return deriveAddress(tagUnlockKey, question[:], leUint64(tokenID))
}

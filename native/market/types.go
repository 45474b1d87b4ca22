package market

import (
	"fmt"
	"math/big"
	"strings"
)

// Fee configuration applied when a marketplace record is first written.
const (
	DefaultPlatformFeeBps    uint32 = 500 // 5%
	DefaultCreatorRoyaltyBps uint32 = 200 // 2%
	MaxFeeBps                uint32 = 1000
	MaxTotalFeeBps           uint32 = 9000
)

// Abuse limits carried by the per-user record.
const (
	MaxQuestionsPerUser      uint64 = 100
	DefaultOperationCooldown int64  = 60
	initialCooldownCredit    int64  = 300
)

// Input bounds. Content identifiers point at off-ledger payloads and are
// stored opaquely after a shape check.
const (
	MinContentCIDLength   = 46
	MaxContentCIDLength   = 64
	MinMetadataURILength  = 5
	MaxMetadataURILength  = 200
	MaxEncryptedKeyLength = 1024
)

// UnlockKeyDiscriminator tags unlock-key records so they can be told apart
// when scanning raw program-owned storage.
const UnlockKeyDiscriminator uint8 = 1

// Operation names the instruction families that can be paused independently
// of the global kill switch.
type Operation string

const (
	OpCreateQuestion Operation = "create_question"
	OpMintKey        Operation = "mint_key"
	OpListKey        Operation = "list_key"
	OpBuyKey         Operation = "buy_key"
)

// Valid reports whether the operation is one of the switchable families.
func (op Operation) Valid() bool {
	switch op {
	case OpCreateQuestion, OpMintKey, OpListKey, OpBuyKey:
		return true
	default:
		return false
	}
}

// ParseOperation canonicalises an operation name supplied over the wire.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	if !op.Valid() {
		return "", fmt.Errorf("market: unknown operation %q", raw)
	}
	return op, nil
}

// PausedOperations keeps one switch per instruction family.
type PausedOperations struct {
	CreateQuestion bool
	MintKey        bool
	ListKey        bool
	BuyKey         bool
}

// Toggle flips the switch for the supplied operation.
func (p *PausedOperations) Toggle(op Operation) {
	switch op {
	case OpCreateQuestion:
		p.CreateQuestion = !p.CreateQuestion
	case OpMintKey:
		p.MintKey = !p.MintKey
	case OpListKey:
		p.ListKey = !p.ListKey
	case OpBuyKey:
		p.BuyKey = !p.BuyKey
	}
}

// IsPaused reports whether the supplied operation family is switched off.
func (p PausedOperations) IsPaused(op Operation) bool {
	switch op {
	case OpCreateQuestion:
		return p.CreateQuestion
	case OpMintKey:
		return p.MintKey
	case OpListKey:
		return p.ListKey
	case OpBuyKey:
		return p.BuyKey
	default:
		return false
	}
}

// Marketplace is the singleton control record. Its address is derived from
// the founding authority and never changes, even after the admin authority is
// transferred.
type Marketplace struct {
	Founder           [20]byte
	Authority         [20]byte
	Treasury          [20]byte
	PaymentMint       string
	QuestionCounter   uint64
	PlatformFeeBps    uint32
	CreatorRoyaltyBps uint32
	TotalVolume       *big.Int
	Paused            bool
	PausedOperations  PausedOperations
}

// Address re-derives the record's storage address from its founding seed.
func (m *Marketplace) Address() [32]byte {
	return MarketplaceAddress(m.Founder)
}

// IsPaused implements the pause view consumed by the operation guard. The
// global kill switch is checked separately by the engine.
func (m *Marketplace) IsPaused(operation string) bool {
	op := Operation(operation)
	return m.PausedOperations.IsPaused(op)
}

// Clone returns a deep copy of the marketplace record.
func (m *Marketplace) Clone() *Marketplace {
	if m == nil {
		return nil
	}
	clone := *m
	if m.TotalVolume != nil {
		clone.TotalVolume = new(big.Int).Set(m.TotalVolume)
	} else {
		clone.TotalVolume = big.NewInt(0)
	}
	return &clone
}

// UserState is the lazily created per-participant record.
type UserState struct {
	Owner             [20]byte
	QuestionsCreated  uint64
	LastOperationTime int64
	IsBlacklisted     bool
}

// Address re-derives the record's storage address from the owner seed.
func (u *UserState) Address() [32]byte {
	return UserStateAddress(u.Owner)
}

// Clone returns a copy of the user record.
func (u *UserState) Clone() *UserState {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// Question gates a paid answer behind a fixed-supply run of unlock keys.
type Question struct {
	Marketplace  [32]byte
	Creator      [20]byte
	ContentCID   string
	ContentHash  [32]byte
	UnlockPrice  *big.Int
	MaxKeys      uint64
	CurrentKeys  uint64
	Index        uint64
	CreationTime int64
	TotalSales   *big.Int
	IsActive     bool
}

// Address re-derives the record's storage address from the marketplace seed
// and the creation-order index.
func (q *Question) Address() [32]byte {
	return QuestionAddress(q.Marketplace, q.Index)
}

// Clone returns a deep copy of the question record.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	clone := *q
	if q.UnlockPrice != nil {
		clone.UnlockPrice = new(big.Int).Set(q.UnlockPrice)
	} else {
		clone.UnlockPrice = big.NewInt(0)
	}
	if q.TotalSales != nil {
		clone.TotalSales = new(big.Int).Set(q.TotalSales)
	} else {
		clone.TotalSales = big.NewInt(0)
	}
	return &clone
}

// UnlockKey is the resellable access token proving the right to decrypt one
// question's answer. Exactly one record exists per (question, tokenId).
type UnlockKey struct {
	Discriminator uint8
	Owner         [20]byte
	Question      [32]byte
	TokenID       uint64
	EncryptedKey  []byte
	MetadataURI   string
	IsListed      bool
	ListPrice     *big.Int
	MintTime      int64
	ListTime      int64
	LastSoldPrice *big.Int
	LastSoldTime  int64
}

// Address re-derives the record's storage address from the question seed and
// the issuance-order token id.
func (k *UnlockKey) Address() [32]byte {
	return UnlockKeyAddress(k.Question, k.TokenID)
}

// Clone returns a deep copy of the unlock-key record.
func (k *UnlockKey) Clone() *UnlockKey {
	if k == nil {
		return nil
	}
	clone := *k
	clone.EncryptedKey = append([]byte(nil), k.EncryptedKey...)
	if k.ListPrice != nil {
		clone.ListPrice = new(big.Int).Set(k.ListPrice)
	} else {
		clone.ListPrice = big.NewInt(0)
	}
	if k.LastSoldPrice != nil {
		clone.LastSoldPrice = new(big.Int).Set(k.LastSoldPrice)
	} else {
		clone.LastSoldPrice = big.NewInt(0)
	}
	return &clone
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

func validContentCID(cid string) bool {
	if len(cid) < MinContentCIDLength || len(cid) > MaxContentCIDLength {
		return false
	}
	for _, r := range cid {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func validMetadataURI(uri string) bool {
	if len(uri) < MinMetadataURILength || len(uri) > MaxMetadataURILength {
		return false
	}
	return isASCII(uri)
}

// SanitizeMarketplace validates and normalises the supplied record, returning
// a cloned instance with non-nil amounts. The original value is not mutated.
func SanitizeMarketplace(m *Marketplace) (*Marketplace, error) {
	if m == nil {
		return nil, fmt.Errorf("nil marketplace")
	}
	clone := m.Clone()
	clone.PaymentMint = strings.ToUpper(strings.TrimSpace(clone.PaymentMint))
	if clone.PaymentMint == "" {
		return nil, fmt.Errorf("marketplace payment mint must not be empty")
	}
	if clone.PlatformFeeBps > MaxFeeBps {
		return nil, fmt.Errorf("marketplace platform fee bps out of range: %d", clone.PlatformFeeBps)
	}
	if clone.CreatorRoyaltyBps > MaxFeeBps {
		return nil, fmt.Errorf("marketplace creator royalty bps out of range: %d", clone.CreatorRoyaltyBps)
	}
	if clone.TotalVolume.Sign() < 0 {
		return nil, fmt.Errorf("marketplace total volume must be non-negative")
	}
	return clone, nil
}

// SanitizeQuestion validates and normalises the supplied record.
func SanitizeQuestion(q *Question) (*Question, error) {
	if q == nil {
		return nil, fmt.Errorf("nil question")
	}
	clone := q.Clone()
	clone.ContentCID = strings.TrimSpace(clone.ContentCID)
	if !validContentCID(clone.ContentCID) {
		return nil, ErrInvalidContentCID
	}
	if clone.UnlockPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if clone.MaxKeys == 0 {
		return nil, ErrInvalidKeyCount
	}
	if clone.CurrentKeys > clone.MaxKeys {
		return nil, fmt.Errorf("question current keys %d exceeds max %d", clone.CurrentKeys, clone.MaxKeys)
	}
	if clone.TotalSales.Sign() < 0 {
		return nil, fmt.Errorf("question total sales must be non-negative")
	}
	return clone, nil
}

// SanitizeUnlockKey validates and normalises the supplied record.
func SanitizeUnlockKey(k *UnlockKey) (*UnlockKey, error) {
	if k == nil {
		return nil, fmt.Errorf("nil unlock key")
	}
	clone := k.Clone()
	if clone.Discriminator != UnlockKeyDiscriminator {
		return nil, fmt.Errorf("unlock key discriminator mismatch: %d", clone.Discriminator)
	}
	if len(clone.EncryptedKey) > MaxEncryptedKeyLength {
		return nil, ErrInvalidKeyLength
	}
	clone.MetadataURI = strings.TrimSpace(clone.MetadataURI)
	if !validMetadataURI(clone.MetadataURI) {
		return nil, ErrInvalidMetadata
	}
	if clone.IsListed && clone.ListPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if !clone.IsListed && clone.ListPrice.Sign() != 0 {
		return nil, fmt.Errorf("unlisted key must carry a zero list price")
	}
	return clone, nil
}

// SanitizeUserState validates the supplied record.
func SanitizeUserState(u *UserState) (*UserState, error) {
	if u == nil {
		return nil, fmt.Errorf("nil user state")
	}
	return u.Clone(), nil
}

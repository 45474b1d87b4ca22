package state

import (
	"math/big"

	"qamarket/native/market"
)

// errSlotOccupied is surfaced when an exclusive create lands on a slot that
// already holds data. Engines treat it as the concurrency-collision outcome.
var errSlotOccupied = market.ErrSlotOccupied

func bigFromInt64(v int64) *big.Int { return big.NewInt(v) }

func int64FromBig(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Stored record shapes mirror the engine types with RLP-friendly fields:
// signed timestamps travel as big integers, everything else maps directly.

type storedMarketplace struct {
	Founder           [20]byte
	Authority         [20]byte
	Treasury          [20]byte
	PaymentMint       string
	QuestionCounter   uint64
	PlatformFeeBps    uint32
	CreatorRoyaltyBps uint32
	TotalVolume       *big.Int
	Paused            bool
	PausedCreate      bool
	PausedMint        bool
	PausedList        bool
	PausedBuy         bool
}

func newStoredMarketplace(m *market.Marketplace) *storedMarketplace {
	return &storedMarketplace{
		Founder:           m.Founder,
		Authority:         m.Authority,
		Treasury:          m.Treasury,
		PaymentMint:       m.PaymentMint,
		QuestionCounter:   m.QuestionCounter,
		PlatformFeeBps:    m.PlatformFeeBps,
		CreatorRoyaltyBps: m.CreatorRoyaltyBps,
		TotalVolume:       nonNil(m.TotalVolume),
		Paused:            m.Paused,
		PausedCreate:      m.PausedOperations.CreateQuestion,
		PausedMint:        m.PausedOperations.MintKey,
		PausedList:        m.PausedOperations.ListKey,
		PausedBuy:         m.PausedOperations.BuyKey,
	}
}

func (s *storedMarketplace) toMarketplace() *market.Marketplace {
	return &market.Marketplace{
		Founder:           s.Founder,
		Authority:         s.Authority,
		Treasury:          s.Treasury,
		PaymentMint:       s.PaymentMint,
		QuestionCounter:   s.QuestionCounter,
		PlatformFeeBps:    s.PlatformFeeBps,
		CreatorRoyaltyBps: s.CreatorRoyaltyBps,
		TotalVolume:       nonNil(s.TotalVolume),
		Paused:            s.Paused,
		PausedOperations: market.PausedOperations{
			CreateQuestion: s.PausedCreate,
			MintKey:        s.PausedMint,
			ListKey:        s.PausedList,
			BuyKey:         s.PausedBuy,
		},
	}
}

type storedUserState struct {
	Owner             [20]byte
	QuestionsCreated  uint64
	LastOperationTime *big.Int
	IsBlacklisted     bool
}

type storedQuestion struct {
	Marketplace  [32]byte
	Creator      [20]byte
	ContentCID   string
	ContentHash  [32]byte
	UnlockPrice  *big.Int
	MaxKeys      uint64
	CurrentKeys  uint64
	Index        uint64
	CreationTime *big.Int
	TotalSales   *big.Int
	IsActive     bool
}

type storedUnlockKey struct {
	Discriminator uint8
	Owner         [20]byte
	Question      [32]byte
	TokenID       uint64
	EncryptedKey  []byte
	MetadataURI   string
	IsListed      bool
	ListPrice     *big.Int
	MintTime      *big.Int
	ListTime      *big.Int
	LastSoldPrice *big.Int
	LastSoldTime  *big.Int
}

func marketplaceKey(addr [32]byte) []byte { return storageKey(marketplaceRecPrefix, addr[:]) }
func userStateKey(addr [32]byte) []byte   { return storageKey(userStateRecPrefix, addr[:]) }
func questionKey(addr [32]byte) []byte    { return storageKey(questionRecPrefix, addr[:]) }
func unlockKeyKey(addr [32]byte) []byte   { return storageKey(unlockKeyRecPrefix, addr[:]) }

// MarketplaceCreate claims the marketplace slot for a founding authority.
func (m *Manager) MarketplaceCreate(mp *market.Marketplace) error {
	sanitized, err := market.SanitizeMarketplace(mp)
	if err != nil {
		return err
	}
	return m.createRecord(marketplaceKey(sanitized.Address()), newStoredMarketplace(sanitized))
}

// MarketplaceGet loads the marketplace record at the supplied slot.
func (m *Manager) MarketplaceGet(addr [32]byte) (*market.Marketplace, bool, error) {
	stored := new(storedMarketplace)
	ok, err := m.getRecord(marketplaceKey(addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	mp, err := market.SanitizeMarketplace(stored.toMarketplace())
	if err != nil {
		return nil, false, err
	}
	return mp, true, nil
}

// MarketplacePut overwrites an existing marketplace record.
func (m *Manager) MarketplacePut(mp *market.Marketplace) error {
	sanitized, err := market.SanitizeMarketplace(mp)
	if err != nil {
		return err
	}
	return m.putRecord(marketplaceKey(sanitized.Address()), newStoredMarketplace(sanitized))
}

// UserStateCreate claims the per-participant slot.
func (m *Manager) UserStateCreate(u *market.UserState) error {
	sanitized, err := market.SanitizeUserState(u)
	if err != nil {
		return err
	}
	stored := &storedUserState{
		Owner:             sanitized.Owner,
		QuestionsCreated:  sanitized.QuestionsCreated,
		LastOperationTime: bigFromInt64(sanitized.LastOperationTime),
		IsBlacklisted:     sanitized.IsBlacklisted,
	}
	return m.createRecord(userStateKey(sanitized.Address()), stored)
}

// UserStateGet loads the user record at the supplied slot.
func (m *Manager) UserStateGet(addr [32]byte) (*market.UserState, bool, error) {
	stored := new(storedUserState)
	ok, err := m.getRecord(userStateKey(addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &market.UserState{
		Owner:             stored.Owner,
		QuestionsCreated:  stored.QuestionsCreated,
		LastOperationTime: int64FromBig(stored.LastOperationTime),
		IsBlacklisted:     stored.IsBlacklisted,
	}, true, nil
}

// UserStatePut overwrites an existing user record.
func (m *Manager) UserStatePut(u *market.UserState) error {
	sanitized, err := market.SanitizeUserState(u)
	if err != nil {
		return err
	}
	stored := &storedUserState{
		Owner:             sanitized.Owner,
		QuestionsCreated:  sanitized.QuestionsCreated,
		LastOperationTime: bigFromInt64(sanitized.LastOperationTime),
		IsBlacklisted:     sanitized.IsBlacklisted,
	}
	return m.putRecord(userStateKey(sanitized.Address()), stored)
}

func newStoredQuestion(q *market.Question) *storedQuestion {
	return &storedQuestion{
		Marketplace:  q.Marketplace,
		Creator:      q.Creator,
		ContentCID:   q.ContentCID,
		ContentHash:  q.ContentHash,
		UnlockPrice:  nonNil(q.UnlockPrice),
		MaxKeys:      q.MaxKeys,
		CurrentKeys:  q.CurrentKeys,
		Index:        q.Index,
		CreationTime: bigFromInt64(q.CreationTime),
		TotalSales:   nonNil(q.TotalSales),
		IsActive:     q.IsActive,
	}
}

func (s *storedQuestion) toQuestion() *market.Question {
	return &market.Question{
		Marketplace:  s.Marketplace,
		Creator:      s.Creator,
		ContentCID:   s.ContentCID,
		ContentHash:  s.ContentHash,
		UnlockPrice:  nonNil(s.UnlockPrice),
		MaxKeys:      s.MaxKeys,
		CurrentKeys:  s.CurrentKeys,
		Index:        s.Index,
		CreationTime: int64FromBig(s.CreationTime),
		TotalSales:   nonNil(s.TotalSales),
		IsActive:     s.IsActive,
	}
}

// QuestionCreate claims the question slot derived from its index.
func (m *Manager) QuestionCreate(q *market.Question) error {
	sanitized, err := market.SanitizeQuestion(q)
	if err != nil {
		return err
	}
	return m.createRecord(questionKey(sanitized.Address()), newStoredQuestion(sanitized))
}

// QuestionGet loads the question record at the supplied slot.
func (m *Manager) QuestionGet(addr [32]byte) (*market.Question, bool, error) {
	stored := new(storedQuestion)
	ok, err := m.getRecord(questionKey(addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	q, err := market.SanitizeQuestion(stored.toQuestion())
	if err != nil {
		return nil, false, err
	}
	return q, true, nil
}

// QuestionPut overwrites an existing question record.
func (m *Manager) QuestionPut(q *market.Question) error {
	sanitized, err := market.SanitizeQuestion(q)
	if err != nil {
		return err
	}
	return m.putRecord(questionKey(sanitized.Address()), newStoredQuestion(sanitized))
}

func newStoredUnlockKey(k *market.UnlockKey) *storedUnlockKey {
	return &storedUnlockKey{
		Discriminator: k.Discriminator,
		Owner:         k.Owner,
		Question:      k.Question,
		TokenID:       k.TokenID,
		EncryptedKey:  append([]byte(nil), k.EncryptedKey...),
		MetadataURI:   k.MetadataURI,
		IsListed:      k.IsListed,
		ListPrice:     nonNil(k.ListPrice),
		MintTime:      bigFromInt64(k.MintTime),
		ListTime:      bigFromInt64(k.ListTime),
		LastSoldPrice: nonNil(k.LastSoldPrice),
		LastSoldTime:  bigFromInt64(k.LastSoldTime),
	}
}

func (s *storedUnlockKey) toUnlockKey() *market.UnlockKey {
	return &market.UnlockKey{
		Discriminator: s.Discriminator,
		Owner:         s.Owner,
		Question:      s.Question,
		TokenID:       s.TokenID,
		EncryptedKey:  append([]byte(nil), s.EncryptedKey...),
		MetadataURI:   s.MetadataURI,
		IsListed:      s.IsListed,
		ListPrice:     nonNil(s.ListPrice),
		MintTime:      int64FromBig(s.MintTime),
		ListTime:      int64FromBig(s.ListTime),
		LastSoldPrice: nonNil(s.LastSoldPrice),
		LastSoldTime:  int64FromBig(s.LastSoldTime),
	}
}

// UnlockKeyCreate claims the key slot derived from its token id. This is the
// collision point for racing mints: the loser observes the occupied slot.
func (m *Manager) UnlockKeyCreate(k *market.UnlockKey) error {
	sanitized, err := market.SanitizeUnlockKey(k)
	if err != nil {
		return err
	}
	return m.createRecord(unlockKeyKey(sanitized.Address()), newStoredUnlockKey(sanitized))
}

// UnlockKeyGet loads the key record at the supplied slot.
func (m *Manager) UnlockKeyGet(addr [32]byte) (*market.UnlockKey, bool, error) {
	stored := new(storedUnlockKey)
	ok, err := m.getRecord(unlockKeyKey(addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	k, err := market.SanitizeUnlockKey(stored.toUnlockKey())
	if err != nil {
		return nil, false, err
	}
	return k, true, nil
}

// UnlockKeyPut overwrites an existing key record.
func (m *Manager) UnlockKeyPut(k *market.UnlockKey) error {
	sanitized, err := market.SanitizeUnlockKey(k)
	if err != nil {
		return err
	}
	return m.putRecord(unlockKeyKey(sanitized.Address()), newStoredUnlockKey(sanitized))
}

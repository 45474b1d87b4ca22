package events

import (
	"encoding/hex"
	"math/big"

	"qamarket/core/types"
)

const (
	TypeMarketplaceInitialized = "market.marketplace.initialized"
	TypeMarketplaceToggled     = "market.marketplace.toggled"
	TypeOperationToggled       = "market.operation.toggled"
	TypeFeesUpdated            = "market.fees.updated"
	TypeTreasuryUpdated        = "market.treasury.updated"
	TypeAuthorityTransferred   = "market.authority.transferred"
	TypeUserBlacklisted        = "market.user.blacklisted"
	TypeUserUnblacklisted      = "market.user.unblacklisted"
	TypeQuestionCreated        = "market.question.created"
	TypeKeyMinted              = "market.key.minted"
	TypeKeyListed              = "market.key.listed"
	TypeListingUpdated         = "market.listing.updated"
	TypeListingCancelled       = "market.listing.cancelled"
	TypeKeySold                = "market.key.sold"
)

type MarketplaceInitialized struct {
	Marketplace       [32]byte
	Authority         [20]byte
	PlatformFeeBps    uint32
	CreatorRoyaltyBps uint32
	PaymentMint       string
}

func (MarketplaceInitialized) EventType() string { return TypeMarketplaceInitialized }

func (e MarketplaceInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketplaceInitialized,
		Attributes: map[string]string{
			"marketplace":       hex.EncodeToString(e.Marketplace[:]),
			"authority":         addrToString(e.Authority),
			"platformFeeBps":    uintToString(uint64(e.PlatformFeeBps)),
			"creatorRoyaltyBps": uintToString(uint64(e.CreatorRoyaltyBps)),
			"paymentMint":       e.PaymentMint,
		},
	}
}

type MarketplaceToggled struct {
	Marketplace [32]byte
	Authority   [20]byte
	Paused      bool
}

func (MarketplaceToggled) EventType() string { return TypeMarketplaceToggled }

func (e MarketplaceToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketplaceToggled,
		Attributes: map[string]string{
			"marketplace": hex.EncodeToString(e.Marketplace[:]),
			"authority":   addrToString(e.Authority),
			"paused":      boolToString(e.Paused),
		},
	}
}

type OperationToggled struct {
	Marketplace [32]byte
	Authority   [20]byte
	Operation   string
	Paused      bool
}

func (OperationToggled) EventType() string { return TypeOperationToggled }

func (e OperationToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeOperationToggled,
		Attributes: map[string]string{
			"marketplace": hex.EncodeToString(e.Marketplace[:]),
			"authority":   addrToString(e.Authority),
			"operation":   e.Operation,
			"paused":      boolToString(e.Paused),
		},
	}
}

type FeesUpdated struct {
	Marketplace       [32]byte
	PlatformFeeBps    uint32
	CreatorRoyaltyBps uint32
}

func (FeesUpdated) EventType() string { return TypeFeesUpdated }

func (e FeesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesUpdated,
		Attributes: map[string]string{
			"marketplace":       hex.EncodeToString(e.Marketplace[:]),
			"platformFeeBps":    uintToString(uint64(e.PlatformFeeBps)),
			"creatorRoyaltyBps": uintToString(uint64(e.CreatorRoyaltyBps)),
		},
	}
}

type TreasuryUpdated struct {
	Marketplace      [32]byte
	PreviousTreasury [20]byte
	NewTreasury      [20]byte
}

func (TreasuryUpdated) EventType() string { return TypeTreasuryUpdated }

func (e TreasuryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryUpdated,
		Attributes: map[string]string{
			"marketplace":      hex.EncodeToString(e.Marketplace[:]),
			"previousTreasury": addrToString(e.PreviousTreasury),
			"newTreasury":      addrToString(e.NewTreasury),
		},
	}
}

type AuthorityTransferred struct {
	Marketplace       [32]byte
	PreviousAuthority [20]byte
	NewAuthority      [20]byte
}

func (AuthorityTransferred) EventType() string { return TypeAuthorityTransferred }

func (e AuthorityTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeAuthorityTransferred,
		Attributes: map[string]string{
			"marketplace":       hex.EncodeToString(e.Marketplace[:]),
			"previousAuthority": addrToString(e.PreviousAuthority),
			"newAuthority":      addrToString(e.NewAuthority),
		},
	}
}

type UserBlacklisted struct {
	User      [20]byte
	Authority [20]byte
	Flagged   bool
}

func (e UserBlacklisted) EventType() string {
	if e.Flagged {
		return TypeUserBlacklisted
	}
	return TypeUserUnblacklisted
}

func (e UserBlacklisted) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"user":      addrToString(e.User),
			"authority": addrToString(e.Authority),
		},
	}
}

type QuestionCreated struct {
	Question    [32]byte
	Index       uint64
	Creator     [20]byte
	UnlockPrice *big.Int
	MaxKeys     uint64
	CreatedAt   int64
}

func (QuestionCreated) EventType() string { return TypeQuestionCreated }

func (e QuestionCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeQuestionCreated,
		Attributes: map[string]string{
			"question":    hex.EncodeToString(e.Question[:]),
			"index":       uintToString(e.Index),
			"creator":     addrToString(e.Creator),
			"unlockPrice": formatAmount(e.UnlockPrice),
			"maxKeys":     uintToString(e.MaxKeys),
			"createdAt":   intToString(e.CreatedAt),
		},
	}
}

type KeyMinted struct {
	Key           [32]byte
	TokenID       uint64
	Question      [32]byte
	QuestionIndex uint64
	Owner         [20]byte
	Price         *big.Int
	MintTime      int64
}

func (KeyMinted) EventType() string { return TypeKeyMinted }

func (e KeyMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeKeyMinted,
		Attributes: map[string]string{
			"key":           hex.EncodeToString(e.Key[:]),
			"tokenId":       uintToString(e.TokenID),
			"question":      hex.EncodeToString(e.Question[:]),
			"questionIndex": uintToString(e.QuestionIndex),
			"owner":         addrToString(e.Owner),
			"price":         formatAmount(e.Price),
			"mintTime":      intToString(e.MintTime),
		},
	}
}

type KeyListed struct {
	Key      [32]byte
	TokenID  uint64
	Seller   [20]byte
	Price    *big.Int
	ListTime int64
}

func (KeyListed) EventType() string { return TypeKeyListed }

func (e KeyListed) Event() *types.Event {
	return &types.Event{
		Type: TypeKeyListed,
		Attributes: map[string]string{
			"key":      hex.EncodeToString(e.Key[:]),
			"tokenId":  uintToString(e.TokenID),
			"seller":   addrToString(e.Seller),
			"price":    formatAmount(e.Price),
			"listTime": intToString(e.ListTime),
		},
	}
}

type ListingUpdated struct {
	Key      [32]byte
	TokenID  uint64
	Seller   [20]byte
	OldPrice *big.Int
	NewPrice *big.Int
}

func (ListingUpdated) EventType() string { return TypeListingUpdated }

func (e ListingUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeListingUpdated,
		Attributes: map[string]string{
			"key":      hex.EncodeToString(e.Key[:]),
			"tokenId":  uintToString(e.TokenID),
			"seller":   addrToString(e.Seller),
			"oldPrice": formatAmount(e.OldPrice),
			"newPrice": formatAmount(e.NewPrice),
		},
	}
}

type ListingCancelled struct {
	Key     [32]byte
	TokenID uint64
	Seller  [20]byte
}

func (ListingCancelled) EventType() string { return TypeListingCancelled }

func (e ListingCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeListingCancelled,
		Attributes: map[string]string{
			"key":     hex.EncodeToString(e.Key[:]),
			"tokenId": uintToString(e.TokenID),
			"seller":  addrToString(e.Seller),
		},
	}
}

type KeySold struct {
	Key      [32]byte
	TokenID  uint64
	Question [32]byte
	Seller   [20]byte
	Buyer    [20]byte
	Price    *big.Int
	SoldTime int64
}

func (KeySold) EventType() string { return TypeKeySold }

func (e KeySold) Event() *types.Event {
	return &types.Event{
		Type: TypeKeySold,
		Attributes: map[string]string{
			"key":      hex.EncodeToString(e.Key[:]),
			"tokenId":  uintToString(e.TokenID),
			"question": hex.EncodeToString(e.Question[:]),
			"seller":   addrToString(e.Seller),
			"buyer":    addrToString(e.Buyer),
			"price":    formatAmount(e.Price),
			"soldTime": intToString(e.SoldTime),
		},
	}
}

package market

// Marketplace mirrors the qa_getMarketplace result.
type Marketplace struct {
	Address           string          `json:"address"`
	Founder           string          `json:"founder"`
	Authority         string          `json:"authority"`
	Treasury          string          `json:"treasury"`
	PaymentMint       string          `json:"paymentMint"`
	QuestionCounter   uint64          `json:"questionCounter"`
	PlatformFeeBps    uint32          `json:"platformFeeBps"`
	CreatorRoyaltyBps uint32          `json:"creatorRoyaltyBps"`
	TotalVolume       string          `json:"totalVolume"`
	Paused            bool            `json:"paused"`
	PausedOperations  map[string]bool `json:"pausedOperations"`
}

// Question mirrors the qa_getQuestion result.
type Question struct {
	Address      string `json:"address"`
	Marketplace  string `json:"marketplace"`
	Creator      string `json:"creator"`
	ContentCID   string `json:"contentCid"`
	ContentHash  string `json:"contentHash"`
	UnlockPrice  string `json:"unlockPrice"`
	MaxKeys      uint64 `json:"maxKeys"`
	CurrentKeys  uint64 `json:"currentKeys"`
	Index        uint64 `json:"index"`
	CreationTime int64  `json:"creationTime"`
	TotalSales   string `json:"totalSales"`
	IsActive     bool   `json:"isActive"`
}

// UnlockKey mirrors the qa_getUnlockKey result. EncryptedKey is base64.
type UnlockKey struct {
	Address       string `json:"address"`
	Owner         string `json:"owner"`
	Question      string `json:"question"`
	TokenID       uint64 `json:"tokenId"`
	EncryptedKey  string `json:"encryptedKey"`
	MetadataURI   string `json:"metadataUri"`
	IsListed      bool   `json:"isListed"`
	ListPrice     string `json:"listPrice"`
	MintTime      int64  `json:"mintTime"`
	ListTime      int64  `json:"listTime,omitempty"`
	LastSoldPrice string `json:"lastSoldPrice"`
	LastSoldTime  int64  `json:"lastSoldTime,omitempty"`
}

// UserState mirrors the qa_getUserState result.
type UserState struct {
	Owner             string `json:"owner"`
	QuestionsCreated  uint64 `json:"questionsCreated"`
	LastOperationTime int64  `json:"lastOperationTime"`
	IsBlacklisted     bool   `json:"isBlacklisted"`
}

// Balance mirrors the qa_getBalance result.
type Balance struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

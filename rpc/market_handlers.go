package rpc

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"qamarket/crypto"
	"qamarket/native/common"
	"qamarket/native/market"
)

type initializeParams struct {
	Authority   string `json:"authority"`
	Treasury    string `json:"treasury"`
	PaymentMint string `json:"paymentMint"`
}

type marketplaceRefParams struct {
	Marketplace string `json:"marketplace"`
	Caller      string `json:"caller"`
}

type toggleOperationParams struct {
	Marketplace string `json:"marketplace"`
	Caller      string `json:"caller"`
	Operation   string `json:"operation"`
}

type updateFeesParams struct {
	Marketplace       string `json:"marketplace"`
	Caller            string `json:"caller"`
	PlatformFeeBps    uint32 `json:"platformFeeBps"`
	CreatorRoyaltyBps uint32 `json:"creatorRoyaltyBps"`
}

type updateTreasuryParams struct {
	Marketplace string `json:"marketplace"`
	Caller      string `json:"caller"`
	NewTreasury string `json:"newTreasury"`
}

type transferAuthorityParams struct {
	Marketplace  string `json:"marketplace"`
	Caller       string `json:"caller"`
	NewAuthority string `json:"newAuthority"`
}

type blacklistParams struct {
	Marketplace string `json:"marketplace"`
	Caller      string `json:"caller"`
	User        string `json:"user"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type createQuestionParams struct {
	Marketplace string `json:"marketplace"`
	Creator     string `json:"creator"`
	ContentCID  string `json:"contentCid"`
	ContentHash string `json:"contentHash"`
	UnlockPrice string `json:"unlockPrice"`
	MaxKeys     uint64 `json:"maxKeys"`
}

type mintUnlockKeyParams struct {
	Question     string `json:"question"`
	Buyer        string `json:"buyer"`
	MetadataURI  string `json:"metadataUri"`
	EncryptedKey string `json:"encryptedKey"`
}

type listKeyParams struct {
	Key    string `json:"key"`
	Seller string `json:"seller"`
	Price  string `json:"price"`
}

type cancelListingParams struct {
	Key    string `json:"key"`
	Seller string `json:"seller"`
}

type buyListedKeyParams struct {
	Key             string `json:"key"`
	Buyer           string `json:"buyer"`
	NewEncryptedKey string `json:"newEncryptedKey"`
}

type slotParams struct {
	Address string `json:"address"`
}

type marketplaceResult struct {
	Address           string            `json:"address"`
	Founder           string            `json:"founder"`
	Authority         string            `json:"authority"`
	Treasury          string            `json:"treasury"`
	PaymentMint       string            `json:"paymentMint"`
	QuestionCounter   uint64            `json:"questionCounter"`
	PlatformFeeBps    uint32            `json:"platformFeeBps"`
	CreatorRoyaltyBps uint32            `json:"creatorRoyaltyBps"`
	TotalVolume       string            `json:"totalVolume"`
	Paused            bool              `json:"paused"`
	PausedOperations  map[string]bool   `json:"pausedOperations"`
}

type questionResult struct {
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

type unlockKeyResult struct {
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

type userStateResult struct {
	Owner             string `json:"owner"`
	QuestionsCreated  uint64 `json:"questionsCreated"`
	LastOperationTime int64  `json:"lastOperationTime"`
	IsBlacklisted     bool   `json:"isBlacklisted"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func decodeBech32(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.QAPrefix, addr[:]).String()
}

func decodeSlot(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func formatSlot(slot [32]byte) string {
	return "0x" + hex.EncodeToString(slot[:])
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func decodeContentHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, nil
	}
	return decodeSlot(trimmed)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatMarketplace(mp *market.Marketplace) marketplaceResult {
	return marketplaceResult{
		Address:           formatSlot(mp.Address()),
		Founder:           formatAddress(mp.Founder),
		Authority:         formatAddress(mp.Authority),
		Treasury:          formatAddress(mp.Treasury),
		PaymentMint:       mp.PaymentMint,
		QuestionCounter:   mp.QuestionCounter,
		PlatformFeeBps:    mp.PlatformFeeBps,
		CreatorRoyaltyBps: mp.CreatorRoyaltyBps,
		TotalVolume:       bigString(mp.TotalVolume),
		Paused:            mp.Paused,
		PausedOperations: map[string]bool{
			string(market.OpCreateQuestion): mp.PausedOperations.CreateQuestion,
			string(market.OpMintKey):        mp.PausedOperations.MintKey,
			string(market.OpListKey):        mp.PausedOperations.ListKey,
			string(market.OpBuyKey):         mp.PausedOperations.BuyKey,
		},
	}
}

func formatQuestion(q *market.Question) questionResult {
	return questionResult{
		Address:      formatSlot(q.Address()),
		Marketplace:  formatSlot(q.Marketplace),
		Creator:      formatAddress(q.Creator),
		ContentCID:   q.ContentCID,
		ContentHash:  "0x" + hex.EncodeToString(q.ContentHash[:]),
		UnlockPrice:  bigString(q.UnlockPrice),
		MaxKeys:      q.MaxKeys,
		CurrentKeys:  q.CurrentKeys,
		Index:        q.Index,
		CreationTime: q.CreationTime,
		TotalSales:   bigString(q.TotalSales),
		IsActive:     q.IsActive,
	}
}

func formatUnlockKey(k *market.UnlockKey) unlockKeyResult {
	return unlockKeyResult{
		Address:       formatSlot(k.Address()),
		Owner:         formatAddress(k.Owner),
		Question:      formatSlot(k.Question),
		TokenID:       k.TokenID,
		EncryptedKey:  base64.StdEncoding.EncodeToString(k.EncryptedKey),
		MetadataURI:   k.MetadataURI,
		IsListed:      k.IsListed,
		ListPrice:     bigString(k.ListPrice),
		MintTime:      k.MintTime,
		ListTime:      k.ListTime,
		LastSoldPrice: bigString(k.LastSoldPrice),
		LastSoldTime:  k.LastSoldTime,
	}
}

func formatUserState(us *market.UserState) userStateResult {
	return userStateResult{
		Owner:             formatAddress(us.Owner),
		QuestionsCreated:  us.QuestionsCreated,
		LastOperationTime: us.LastOperationTime,
		IsBlacklisted:     us.IsBlacklisted,
	}
}

// mapEngineError translates program rejections into JSON-RPC error codes so
// clients can distinguish retryable transport failures from typed rejections.
func mapEngineError(err error) (int, int) {
	switch {
	case errors.Is(err, market.ErrNotAuthority),
		errors.Is(err, market.ErrNotKeyOwner),
		errors.Is(err, market.ErrUserBlacklisted):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, market.ErrMarketplaceNotFound),
		errors.Is(err, market.ErrQuestionNotFound),
		errors.Is(err, market.ErrKeyNotFound),
		errors.Is(err, market.ErrUserStateNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, market.ErrInsufficientFunds):
		return http.StatusConflict, codeInsufficient
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidKeyCount),
		errors.Is(err, market.ErrInvalidContentCID),
		errors.Is(err, market.ErrInvalidMetadata),
		errors.Is(err, market.ErrInvalidKeyLength),
		errors.Is(err, market.ErrInvalidOperation),
		errors.Is(err, market.ErrFeeTooHigh):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, market.ErrMarketplacePaused),
		errors.Is(err, common.ErrOperationPaused),
		errors.Is(err, market.ErrQuestionInactive),
		errors.Is(err, market.ErrNoKeysAvailable),
		errors.Is(err, market.ErrNotListed),
		errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrCannotBuyOwnKey),
		errors.Is(err, market.ErrRateLimited),
		errors.Is(err, market.ErrTooManyQuestions),
		errors.Is(err, market.ErrSlotOccupied),
		errors.Is(err, market.ErrMarketplaceExists),
		errors.Is(err, market.ErrUserStateExists):
		return http.StatusConflict, codeRejected
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := mapEngineError(err)
	writeError(w, status, id, code, err.Error(), nil)
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func (s *Server) handleInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params initializeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	authority, err := decodeBech32(params.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid authority address", err.Error())
		return
	}
	treasury, err := decodeBech32(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid treasury address", err.Error())
		return
	}
	mp, err := s.node.Initialize(authority, treasury, params.PaymentMint)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleInitializeUserState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ownerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	us, err := s.node.InitializeUserState(owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUserState(us))
}

func (s *Server) marketplaceMutation(w http.ResponseWriter, req *RPCRequest, run func(marketplace [32]byte, caller [20]byte) (*market.Marketplace, error)) {
	var params marketplaceRefParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	mp, err := run(marketplace, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleToggleMarketplace(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.marketplaceMutation(w, req, s.node.ToggleMarketplace)
}

func (s *Server) handleToggleOperation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params toggleOperationParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	op, err := market.ParseOperation(params.Operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid operation", err.Error())
		return
	}
	mp, err := s.node.ToggleOperation(marketplace, caller, op)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleUpdateFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateFeesParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	mp, err := s.node.UpdateFees(marketplace, caller, params.PlatformFeeBps, params.CreatorRoyaltyBps)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleUpdateTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateTreasuryParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	newTreasury, err := decodeBech32(params.NewTreasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid treasury address", err.Error())
		return
	}
	mp, err := s.node.UpdateTreasury(marketplace, caller, newTreasury)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleTransferAuthority(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transferAuthorityParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	newAuthority, err := decodeBech32(params.NewAuthority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid authority address", err.Error())
		return
	}
	mp, err := s.node.TransferAuthority(marketplace, caller, newAuthority)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleSetBlacklist(w http.ResponseWriter, req *RPCRequest, flagged bool) {
	var params blacklistParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	user, err := decodeBech32(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	us, err := s.node.SetBlacklist(marketplace, caller, user, flagged)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUserState(us))
}

func (s *Server) handleBlacklist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetBlacklist(w, req, true)
}

func (s *Server) handleUnblacklist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetBlacklist(w, req, false)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createQuestionParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	marketplace, err := decodeSlot(params.Marketplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	creator, err := decodeBech32(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	contentHash, err := decodeContentHash(params.ContentHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid content hash", err.Error())
		return
	}
	price, err := parseAmount(params.UnlockPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	q, err := s.node.CreateQuestion(marketplace, creator, params.ContentCID, contentHash, price, params.MaxKeys)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatQuestion(q))
}

func (s *Server) handleMintUnlockKey(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintUnlockKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	question, err := decodeSlot(params.Question)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid question address", err.Error())
		return
	}
	buyer, err := decodeBech32(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	encryptedKey, err := base64.StdEncoding.DecodeString(params.EncryptedKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid encrypted key encoding", err.Error())
		return
	}
	key, err := s.node.MintUnlockKey(question, buyer, params.MetadataURI, encryptedKey)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleListKey(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	keyAddr, err := decodeSlot(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid key address", err.Error())
		return
	}
	seller, err := decodeBech32(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	key, err := s.node.ListKey(keyAddr, seller, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	keyAddr, err := decodeSlot(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid key address", err.Error())
		return
	}
	seller, err := decodeBech32(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	key, err := s.node.UpdateListing(keyAddr, seller, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleCancelListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cancelListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	keyAddr, err := decodeSlot(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid key address", err.Error())
		return
	}
	seller, err := decodeBech32(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	key, err := s.node.CancelListing(keyAddr, seller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleBuyListedKey(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyListedKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	keyAddr, err := decodeSlot(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid key address", err.Error())
		return
	}
	buyer, err := decodeBech32(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	newKey, err := base64.StdEncoding.DecodeString(params.NewEncryptedKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid encrypted key encoding", err.Error())
		return
	}
	key, err := s.node.BuyListedKey(keyAddr, buyer, newKey)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleGetMarketplace(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params slotParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeSlot(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid marketplace address", err.Error())
		return
	}
	mp, ok, err := s.node.GetMarketplace(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load marketplace", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "marketplace not found", nil)
		return
	}
	writeResult(w, req.ID, formatMarketplace(mp))
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params slotParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeSlot(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid question address", err.Error())
		return
	}
	q, ok, err := s.node.GetQuestion(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load question", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "question not found", nil)
		return
	}
	writeResult(w, req.ID, formatQuestion(q))
}

func (s *Server) handleGetUnlockKey(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params slotParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeSlot(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid key address", err.Error())
		return
	}
	key, ok, err := s.node.GetUnlockKey(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load unlock key", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "unlock key not found", nil)
		return
	}
	writeResult(w, req.ID, formatUnlockKey(key))
}

func (s *Server) handleGetUserState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ownerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	us, ok, err := s.node.GetUserState(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load user state", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "user state not found", nil)
		return
	}
	writeResult(w, req.ID, formatUserState(us))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ownerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	acc, err := s.node.GetAccount(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{
		Address: params.Owner,
		Balance: bigString(acc.Balance),
		Nonce:   acc.Nonce,
	})
}

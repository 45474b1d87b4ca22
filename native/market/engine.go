package market

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"qamarket/core/events"
	"qamarket/core/types"
	nativecommon "qamarket/native/common"
)

type engineState interface {
	MarketplaceCreate(m *Marketplace) error
	MarketplaceGet(addr [32]byte) (*Marketplace, bool, error)
	MarketplacePut(m *Marketplace) error
	UserStateCreate(u *UserState) error
	UserStateGet(addr [32]byte) (*UserState, bool, error)
	UserStatePut(u *UserState) error
	QuestionCreate(q *Question) error
	QuestionGet(addr [32]byte) (*Question, bool, error)
	QuestionPut(q *Question) error
	UnlockKeyCreate(k *UnlockKey) error
	UnlockKeyGet(addr [32]byte) (*UnlockKey, bool, error)
	UnlockKeyPut(k *UnlockKey) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine wires the marketplace business logic with persistence and event
// emission. Every method is a single instruction: the caller is responsible
// for running it against a transactional state so the whole sequence either
// commits or leaves no trace.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	nowFn    func() int64
	cooldown int64
}

// NewEngine constructs a marketplace engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		cooldown: DefaultOperationCooldown,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetOperationCooldown adjusts the per-user cooldown between question
// creations. Zero disables the check.
func (e *Engine) SetOperationCooldown(seconds int64) { e.cooldown = seconds }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Initialize writes the marketplace singleton for the supplied authority.
// The derived slot must be empty; a second initialization fails outright.
func (e *Engine) Initialize(authority, treasury [20]byte, paymentMint string) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mint := strings.ToUpper(strings.TrimSpace(paymentMint))
	mp := &Marketplace{
		Founder:           authority,
		Authority:         authority,
		Treasury:          treasury,
		PaymentMint:       mint,
		QuestionCounter:   0,
		PlatformFeeBps:    DefaultPlatformFeeBps,
		CreatorRoyaltyBps: DefaultCreatorRoyaltyBps,
		TotalVolume:       big.NewInt(0),
		Paused:            false,
	}
	if err := e.state.MarketplaceCreate(mp); err != nil {
		if errors.Is(err, ErrSlotOccupied) {
			return nil, ErrMarketplaceExists
		}
		return nil, err
	}
	e.emit(events.MarketplaceInitialized{
		Marketplace:       mp.Address(),
		Authority:         authority,
		PlatformFeeBps:    mp.PlatformFeeBps,
		CreatorRoyaltyBps: mp.CreatorRoyaltyBps,
		PaymentMint:       mp.PaymentMint,
	})
	return mp.Clone(), nil
}

// InitializeUserState writes the lazily created per-participant record. The
// slot is exclusive; callers treating the operation as idempotent should
// fetch before creating.
func (e *Engine) InitializeUserState(owner [20]byte) (*UserState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	us := &UserState{
		Owner:             owner,
		QuestionsCreated:  0,
		LastOperationTime: e.now() - initialCooldownCredit,
		IsBlacklisted:     false,
	}
	if err := e.state.UserStateCreate(us); err != nil {
		if errors.Is(err, ErrSlotOccupied) {
			return nil, ErrUserStateExists
		}
		return nil, err
	}
	return us.Clone(), nil
}

func (e *Engine) marketplace(addr [32]byte) (*Marketplace, error) {
	mp, ok, err := e.state.MarketplaceGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || mp == nil {
		return nil, ErrMarketplaceNotFound
	}
	return mp, nil
}

func (e *Engine) requireAuthority(mp *Marketplace, caller [20]byte) error {
	if mp.Authority != caller {
		return ErrNotAuthority
	}
	return nil
}

func (e *Engine) userState(owner [20]byte) (*UserState, error) {
	us, ok, err := e.state.UserStateGet(UserStateAddress(owner))
	if err != nil {
		return nil, err
	}
	if !ok || us == nil {
		return nil, ErrUserStateNotFound
	}
	return us, nil
}

// ToggleMarketplace flips the global kill switch. Authority only.
func (e *Engine) ToggleMarketplace(marketplace [32]byte, caller [20]byte) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	mp.Paused = !mp.Paused
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(events.MarketplaceToggled{Marketplace: marketplace, Authority: mp.Authority, Paused: mp.Paused})
	return mp.Clone(), nil
}

// ToggleOperation flips the pause switch for one instruction family.
// Authority only.
func (e *Engine) ToggleOperation(marketplace [32]byte, caller [20]byte, op Operation) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !op.Valid() {
		return nil, ErrInvalidOperation
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	mp.PausedOperations.Toggle(op)
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(events.OperationToggled{
		Marketplace: marketplace,
		Authority:   mp.Authority,
		Operation:   string(op),
		Paused:      mp.PausedOperations.IsPaused(op),
	})
	return mp.Clone(), nil
}

// UpdateFees replaces both fee rates. Authority only, rejected while paused.
func (e *Engine) UpdateFees(marketplace [32]byte, caller [20]byte, platformFeeBps, creatorRoyaltyBps uint32) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if platformFeeBps > MaxFeeBps || creatorRoyaltyBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	mp.PlatformFeeBps = platformFeeBps
	mp.CreatorRoyaltyBps = creatorRoyaltyBps
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(events.FeesUpdated{Marketplace: marketplace, PlatformFeeBps: platformFeeBps, CreatorRoyaltyBps: creatorRoyaltyBps})
	return mp.Clone(), nil
}

// UpdateTreasury replaces the treasury owner. Authority only.
func (e *Engine) UpdateTreasury(marketplace [32]byte, caller [20]byte, newTreasury [20]byte) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	previous := mp.Treasury
	mp.Treasury = newTreasury
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(events.TreasuryUpdated{Marketplace: marketplace, PreviousTreasury: previous, NewTreasury: newTreasury})
	return mp.Clone(), nil
}

// TransferAuthority hands the admin role to a new address. The marketplace
// slot stays derived from the founding authority.
func (e *Engine) TransferAuthority(marketplace [32]byte, caller [20]byte, newAuthority [20]byte) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	previous := mp.Authority
	mp.Authority = newAuthority
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(events.AuthorityTransferred{Marketplace: marketplace, PreviousAuthority: previous, NewAuthority: newAuthority})
	return mp.Clone(), nil
}

// SetBlacklist flags or unflags a participant. Authority only; the target's
// user record must exist.
func (e *Engine) SetBlacklist(marketplace [32]byte, caller [20]byte, user [20]byte, flagged bool) (*UserState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if err := e.requireAuthority(mp, caller); err != nil {
		return nil, err
	}
	us, err := e.userState(user)
	if err != nil {
		return nil, err
	}
	us.IsBlacklisted = flagged
	if err := e.state.UserStatePut(us); err != nil {
		return nil, err
	}
	e.emit(events.UserBlacklisted{User: user, Authority: mp.Authority, Flagged: flagged})
	return us.Clone(), nil
}

// CreateQuestion writes a new gated question. The slot is derived from the
// pre-increment question counter; the write and the counter increment land in
// the same transaction, so concurrent creators can never share an index.
func (e *Engine) CreateQuestion(marketplace [32]byte, creator [20]byte, contentCID string, contentHash [32]byte, unlockPrice *big.Int, maxKeys uint64) (*Question, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(marketplace)
	if err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if err := nativecommon.Guard(mp, string(OpCreateQuestion)); err != nil {
		return nil, err
	}
	us, err := e.userState(creator)
	if err != nil {
		return nil, err
	}
	if us.IsBlacklisted {
		return nil, ErrUserBlacklisted
	}
	now := e.now()
	if e.cooldown > 0 && now-us.LastOperationTime < e.cooldown {
		return nil, ErrRateLimited
	}
	if us.QuestionsCreated >= MaxQuestionsPerUser {
		return nil, ErrTooManyQuestions
	}
	if !validContentCID(strings.TrimSpace(contentCID)) {
		return nil, ErrInvalidContentCID
	}
	if unlockPrice == nil || unlockPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if maxKeys == 0 {
		return nil, ErrInvalidKeyCount
	}
	if mp.PlatformFeeBps+mp.CreatorRoyaltyBps > MaxTotalFeeBps {
		return nil, ErrFeeTooHigh
	}
	question := &Question{
		Marketplace:  marketplace,
		Creator:      creator,
		ContentCID:   strings.TrimSpace(contentCID),
		ContentHash:  contentHash,
		UnlockPrice:  new(big.Int).Set(unlockPrice),
		MaxKeys:      maxKeys,
		CurrentKeys:  0,
		Index:        mp.QuestionCounter,
		CreationTime: now,
		TotalSales:   big.NewInt(0),
		IsActive:     true,
	}
	if err := e.state.QuestionCreate(question); err != nil {
		return nil, err
	}
	mp.QuestionCounter++
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	us.QuestionsCreated++
	us.LastOperationTime = now
	if err := e.state.UserStatePut(us); err != nil {
		return nil, err
	}
	e.emit(events.QuestionCreated{
		Question:    question.Address(),
		Index:       question.Index,
		Creator:     creator,
		UnlockPrice: question.UnlockPrice,
		MaxKeys:     maxKeys,
		CreatedAt:   now,
	})
	return question.Clone(), nil
}

func (e *Engine) question(addr [32]byte) (*Question, error) {
	q, ok, err := e.state.QuestionGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || q == nil {
		return nil, ErrQuestionNotFound
	}
	return q, nil
}

func (e *Engine) unlockKey(addr [32]byte) (*UnlockKey, error) {
	k, ok, err := e.state.UnlockKeyGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || k == nil {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

func (e *Engine) debit(addr [20]byte, amount *big.Int) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return e.state.PutAccount(addr, acc)
}

func (e *Engine) credit(addr [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return e.state.PutAccount(addr, acc)
}

// MintUnlockKey performs primary issuance: it charges the buyer the unlock
// price net of the platform fee, claims the next token slot exclusively and
// writes the access record. The slot index is the question's current key
// counter, so a racing mint that read the same counter loses with
// ErrSlotOccupied instead of double-issuing.
func (e *Engine) MintUnlockKey(questionAddr [32]byte, buyer [20]byte, metadataURI string, encryptedKey []byte) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	question, err := e.question(questionAddr)
	if err != nil {
		return nil, err
	}
	mp, err := e.marketplace(question.Marketplace)
	if err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if err := nativecommon.Guard(mp, string(OpMintKey)); err != nil {
		return nil, err
	}
	if !question.IsActive {
		return nil, ErrQuestionInactive
	}
	if question.CurrentKeys >= question.MaxKeys {
		return nil, ErrNoKeysAvailable
	}
	trimmedURI := strings.TrimSpace(metadataURI)
	if !validMetadataURI(trimmedURI) {
		return nil, ErrInvalidMetadata
	}
	if len(encryptedKey) > MaxEncryptedKeyLength {
		return nil, ErrInvalidKeyLength
	}
	us, err := e.userState(buyer)
	if err != nil {
		return nil, err
	}
	now := e.now()
	price := question.UnlockPrice
	fee, creatorNet := SplitPrimary(price, mp.PlatformFeeBps)
	if err := e.debit(buyer, price); err != nil {
		return nil, err
	}
	if err := e.credit(mp.Treasury, fee); err != nil {
		return nil, err
	}
	if err := e.credit(question.Creator, creatorNet); err != nil {
		return nil, err
	}
	key := &UnlockKey{
		Discriminator: UnlockKeyDiscriminator,
		Owner:         buyer,
		Question:      questionAddr,
		TokenID:       question.CurrentKeys,
		EncryptedKey:  append([]byte(nil), encryptedKey...),
		MetadataURI:   trimmedURI,
		IsListed:      false,
		ListPrice:     big.NewInt(0),
		MintTime:      now,
		LastSoldPrice: big.NewInt(0),
	}
	if err := e.state.UnlockKeyCreate(key); err != nil {
		return nil, err
	}
	question.CurrentKeys++
	question.TotalSales = new(big.Int).Add(question.TotalSales, price)
	if err := e.state.QuestionPut(question); err != nil {
		return nil, err
	}
	mp.TotalVolume = new(big.Int).Add(mp.TotalVolume, price)
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	us.LastOperationTime = now
	if err := e.state.UserStatePut(us); err != nil {
		return nil, err
	}
	e.emit(events.KeyMinted{
		Key:           key.Address(),
		TokenID:       key.TokenID,
		Question:      questionAddr,
		QuestionIndex: question.Index,
		Owner:         buyer,
		Price:         price,
		MintTime:      now,
	})
	return key.Clone(), nil
}

// ListKey puts an owned key on the secondary market.
func (e *Engine) ListKey(keyAddr [32]byte, seller [20]byte, price *big.Int) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	key, err := e.unlockKey(keyAddr)
	if err != nil {
		return nil, err
	}
	question, err := e.question(key.Question)
	if err != nil {
		return nil, err
	}
	mp, err := e.marketplace(question.Marketplace)
	if err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if err := nativecommon.Guard(mp, string(OpListKey)); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if key.Owner != seller {
		return nil, ErrNotKeyOwner
	}
	if key.IsListed {
		return nil, ErrAlreadyListed
	}
	now := e.now()
	key.IsListed = true
	key.ListPrice = new(big.Int).Set(price)
	key.ListTime = now
	if err := e.state.UnlockKeyPut(key); err != nil {
		return nil, err
	}
	e.emit(events.KeyListed{Key: keyAddr, TokenID: key.TokenID, Seller: seller, Price: key.ListPrice, ListTime: now})
	return key.Clone(), nil
}

// UpdateListing replaces the asking price of an active listing.
func (e *Engine) UpdateListing(keyAddr [32]byte, seller [20]byte, newPrice *big.Int) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	key, err := e.unlockKey(keyAddr)
	if err != nil {
		return nil, err
	}
	question, err := e.question(key.Question)
	if err != nil {
		return nil, err
	}
	mp, err := e.marketplace(question.Marketplace)
	if err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if key.Owner != seller {
		return nil, ErrNotKeyOwner
	}
	if !key.IsListed {
		return nil, ErrNotListed
	}
	oldPrice := key.ListPrice
	key.ListPrice = new(big.Int).Set(newPrice)
	if err := e.state.UnlockKeyPut(key); err != nil {
		return nil, err
	}
	e.emit(events.ListingUpdated{Key: keyAddr, TokenID: key.TokenID, Seller: seller, OldPrice: oldPrice, NewPrice: key.ListPrice})
	return key.Clone(), nil
}

// CancelListing withdraws a listing. Withdrawal is always permitted, even
// while the marketplace or the list operation is paused.
func (e *Engine) CancelListing(keyAddr [32]byte, seller [20]byte) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	key, err := e.unlockKey(keyAddr)
	if err != nil {
		return nil, err
	}
	if key.Owner != seller {
		return nil, ErrNotKeyOwner
	}
	if !key.IsListed {
		return nil, ErrNotListed
	}
	key.IsListed = false
	key.ListPrice = big.NewInt(0)
	key.ListTime = 0
	if err := e.state.UnlockKeyPut(key); err != nil {
		return nil, err
	}
	e.emit(events.ListingCancelled{Key: keyAddr, TokenID: key.TokenID, Seller: seller})
	return key.Clone(), nil
}

// BuyListedKey settles a secondary-market sale: the buyer pays the asking
// price, split between the treasury fee, the original creator's royalty and
// the seller's proceeds; ownership moves and the listing is cleared. The
// buyer supplies a re-encrypted copy of the secret, since the previous
// owner's encryption target is no longer valid for them.
func (e *Engine) BuyListedKey(keyAddr [32]byte, buyer [20]byte, newEncryptedKey []byte) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	key, err := e.unlockKey(keyAddr)
	if err != nil {
		return nil, err
	}
	question, err := e.question(key.Question)
	if err != nil {
		return nil, err
	}
	mp, err := e.marketplace(question.Marketplace)
	if err != nil {
		return nil, err
	}
	if mp.Paused {
		return nil, ErrMarketplacePaused
	}
	if err := nativecommon.Guard(mp, string(OpBuyKey)); err != nil {
		return nil, err
	}
	if len(newEncryptedKey) > MaxEncryptedKeyLength {
		return nil, ErrInvalidKeyLength
	}
	if !question.IsActive {
		return nil, ErrQuestionInactive
	}
	if !key.IsListed {
		return nil, ErrNotListed
	}
	if key.Owner == buyer {
		return nil, ErrCannotBuyOwnKey
	}
	us, err := e.userState(buyer)
	if err != nil {
		return nil, err
	}
	now := e.now()
	price := key.ListPrice
	seller := key.Owner
	fee, royalty, sellerNet := SplitResale(price, mp.PlatformFeeBps, mp.CreatorRoyaltyBps)
	if err := e.debit(buyer, price); err != nil {
		return nil, err
	}
	if err := e.credit(mp.Treasury, fee); err != nil {
		return nil, err
	}
	if err := e.credit(question.Creator, royalty); err != nil {
		return nil, err
	}
	if err := e.credit(seller, sellerNet); err != nil {
		return nil, err
	}
	key.Owner = buyer
	key.EncryptedKey = append([]byte(nil), newEncryptedKey...)
	key.IsListed = false
	key.ListPrice = big.NewInt(0)
	key.LastSoldPrice = new(big.Int).Set(price)
	key.LastSoldTime = now
	if err := e.state.UnlockKeyPut(key); err != nil {
		return nil, err
	}
	question.TotalSales = new(big.Int).Add(question.TotalSales, price)
	if err := e.state.QuestionPut(question); err != nil {
		return nil, err
	}
	mp.TotalVolume = new(big.Int).Add(mp.TotalVolume, price)
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	us.LastOperationTime = now
	if err := e.state.UserStatePut(us); err != nil {
		return nil, err
	}
	e.emit(events.KeySold{
		Key:      keyAddr,
		TokenID:  key.TokenID,
		Question: key.Question,
		Seller:   seller,
		Buyer:    buyer,
		Price:    price,
		SoldTime: now,
	})
	return key.Clone(), nil
}

// Marketplace returns the record at the supplied slot without mutating state.
func (e *Engine) Marketplace(addr [32]byte) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	mp, err := e.marketplace(addr)
	if err != nil {
		return nil, err
	}
	return mp.Clone(), nil
}

// Question returns the record at the supplied slot without mutating state.
func (e *Engine) Question(addr [32]byte) (*Question, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	q, err := e.question(addr)
	if err != nil {
		return nil, err
	}
	return q.Clone(), nil
}

// UnlockKey returns the record at the supplied slot without mutating state.
func (e *Engine) UnlockKey(addr [32]byte) (*UnlockKey, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	k, err := e.unlockKey(addr)
	if err != nil {
		return nil, err
	}
	return k.Clone(), nil
}

// UserState returns the record for the supplied owner without mutating state.
func (e *Engine) UserState(owner [20]byte) (*UserState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	us, err := e.userState(owner)
	if err != nil {
		return nil, err
	}
	return us.Clone(), nil
}

package market

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"qamarket/core/events"
	"qamarket/core/types"
	nativecommon "qamarket/native/common"
)

type mockState struct {
	marketplaces map[[32]byte]*Marketplace
	userStates   map[[32]byte]*UserState
	questions    map[[32]byte]*Question
	keys         map[[32]byte]*UnlockKey
	accounts     map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		marketplaces: make(map[[32]byte]*Marketplace),
		userStates:   make(map[[32]byte]*UserState),
		questions:    make(map[[32]byte]*Question),
		keys:         make(map[[32]byte]*UnlockKey),
		accounts:     make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) MarketplaceCreate(mp *Marketplace) error {
	addr := mp.Address()
	if _, ok := m.marketplaces[addr]; ok {
		return ErrSlotOccupied
	}
	m.marketplaces[addr] = mp.Clone()
	return nil
}

func (m *mockState) MarketplaceGet(addr [32]byte) (*Marketplace, bool, error) {
	mp, ok := m.marketplaces[addr]
	if !ok {
		return nil, false, nil
	}
	return mp.Clone(), true, nil
}

func (m *mockState) MarketplacePut(mp *Marketplace) error {
	m.marketplaces[mp.Address()] = mp.Clone()
	return nil
}

func (m *mockState) UserStateCreate(u *UserState) error {
	addr := u.Address()
	if _, ok := m.userStates[addr]; ok {
		return ErrSlotOccupied
	}
	m.userStates[addr] = u.Clone()
	return nil
}

func (m *mockState) UserStateGet(addr [32]byte) (*UserState, bool, error) {
	u, ok := m.userStates[addr]
	if !ok {
		return nil, false, nil
	}
	return u.Clone(), true, nil
}

func (m *mockState) UserStatePut(u *UserState) error {
	m.userStates[u.Address()] = u.Clone()
	return nil
}

func (m *mockState) QuestionCreate(q *Question) error {
	addr := q.Address()
	if _, ok := m.questions[addr]; ok {
		return ErrSlotOccupied
	}
	m.questions[addr] = q.Clone()
	return nil
}

func (m *mockState) QuestionGet(addr [32]byte) (*Question, bool, error) {
	q, ok := m.questions[addr]
	if !ok {
		return nil, false, nil
	}
	return q.Clone(), true, nil
}

func (m *mockState) QuestionPut(q *Question) error {
	m.questions[q.Address()] = q.Clone()
	return nil
}

func (m *mockState) UnlockKeyCreate(k *UnlockKey) error {
	addr := k.Address()
	if _, ok := m.keys[addr]; ok {
		return ErrSlotOccupied
	}
	m.keys[addr] = k.Clone()
	return nil
}

func (m *mockState) UnlockKeyGet(addr [32]byte) (*UnlockKey, bool, error) {
	k, ok := m.keys[addr]
	if !ok {
		return nil, false, nil
	}
	return k.Clone(), true, nil
}

func (m *mockState) UnlockKeyPut(k *UnlockKey) error {
	m.keys[k.Address()] = k.Clone()
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return &types.Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}, nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = &types.Account{Nonce: account.Nonce, Balance: new(big.Int).Set(account.Balance)}
	return nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	return acc.Balance
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

const testCID = "QmYwAPJzv5CZsnAzt8auVZRnDWyh7tLoDSyqR3PwHuqmWG"

var (
	authority = addr(0xA1)
	treasury  = addr(0xA2)
	creator   = addr(0xB1)
	buyerOne  = addr(0xC1)
	buyerTwo  = addr(0xC2)
)

type engineFixture struct {
	engine *Engine
	state  *mockState
	now    int64
	market [32]byte
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{state: newMockState(), now: 1_700_000_000}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetNowFunc(func() int64 { return f.now })
	mp, err := f.engine.Initialize(authority, treasury, "usdq")
	require.NoError(t, err)
	f.market = mp.Address()
	return f
}

func (f *engineFixture) registerUser(t *testing.T, owner [20]byte) {
	t.Helper()
	_, err := f.engine.InitializeUserState(owner)
	require.NoError(t, err)
}

func (f *engineFixture) createQuestion(t *testing.T, price int64, maxKeys uint64) *Question {
	t.Helper()
	q, err := f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{0xFF}, big.NewInt(price), maxKeys)
	require.NoError(t, err)
	return q
}

func TestInitializeDefaults(t *testing.T) {
	f := newFixture(t)
	mp, err := f.engine.Marketplace(f.market)
	require.NoError(t, err)
	require.Equal(t, authority, mp.Authority)
	require.Equal(t, authority, mp.Founder)
	require.Equal(t, treasury, mp.Treasury)
	require.Equal(t, "USDQ", mp.PaymentMint)
	require.Equal(t, DefaultPlatformFeeBps, mp.PlatformFeeBps)
	require.Equal(t, DefaultCreatorRoyaltyBps, mp.CreatorRoyaltyBps)
	require.Zero(t, mp.QuestionCounter)
	require.False(t, mp.Paused)
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Initialize(authority, treasury, "usdq")
	require.ErrorIs(t, err, ErrMarketplaceExists)
}

func TestInitializeUserStateCooldownCredit(t *testing.T) {
	f := newFixture(t)
	us, err := f.engine.InitializeUserState(creator)
	require.NoError(t, err)
	require.Equal(t, f.now-initialCooldownCredit, us.LastOperationTime)

	// The credit lets a fresh user create immediately.
	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 5)
	require.NoError(t, err)

	_, err = f.engine.InitializeUserState(creator)
	require.ErrorIs(t, err, ErrUserStateExists)
}

func TestCreateQuestionValidation(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)

	_, err := f.engine.CreateQuestion(f.market, creator, "short", [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrInvalidContentCID)

	_, err = f.engine.CreateQuestion(f.market, creator, testCID+"!", [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrInvalidContentCID)

	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(0), 5)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, nil, 5)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 0)
	require.ErrorIs(t, err, ErrInvalidKeyCount)

	_, err = f.engine.CreateQuestion(f.market, addr(0xEE), testCID, [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrUserStateNotFound)
}

func TestCreateQuestionCounterAndIndex(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)

	first := f.createQuestion(t, 1000, 5)
	require.Zero(t, first.Index)

	f.now += DefaultOperationCooldown
	second := f.createQuestion(t, 2000, 3)
	require.Equal(t, uint64(1), second.Index)
	require.NotEqual(t, first.Address(), second.Address())

	mp, err := f.engine.Marketplace(f.market)
	require.NoError(t, err)
	require.Equal(t, uint64(2), mp.QuestionCounter)

	us, err := f.engine.UserState(creator)
	require.NoError(t, err)
	require.Equal(t, uint64(2), us.QuestionsCreated)
}

func TestCreateQuestionCooldown(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.createQuestion(t, 1000, 5)

	f.now += DefaultOperationCooldown - 1
	_, err := f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrRateLimited)

	f.now++
	f.createQuestion(t, 1000, 5)
}

func TestCreateQuestionPerUserLimit(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	us, err := f.engine.userState(creator)
	require.NoError(t, err)
	us.QuestionsCreated = MaxQuestionsPerUser
	require.NoError(t, f.state.UserStatePut(us))

	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrTooManyQuestions)
}

func TestCreateQuestionBlacklisted(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	_, err := f.engine.SetBlacklist(f.market, authority, creator, true)
	require.NoError(t, err)

	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrUserBlacklisted)

	_, err = f.engine.SetBlacklist(f.market, authority, creator, false)
	require.NoError(t, err)
	f.createQuestion(t, 1000, 5)
}

func TestMintFeeSplitExact(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1_000_000, 5)
	f.state.fund(buyerOne, 1_000_000)

	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)
	require.Equal(t, buyerOne, key.Owner)
	require.Zero(t, key.TokenID)
	require.False(t, key.IsListed)

	// 5% platform fee on 1_000_000: 50_000 to treasury, remainder to creator.
	require.Zero(t, f.state.balance(t, buyerOne).Sign())
	require.Equal(t, int64(50_000), f.state.balance(t, treasury).Int64())
	require.Equal(t, int64(950_000), f.state.balance(t, creator).Int64())

	got, err := f.engine.Question(q.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.CurrentKeys)
	require.Equal(t, int64(1_000_000), got.TotalSales.Int64())

	mp, err := f.engine.Marketplace(f.market)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), mp.TotalVolume.Int64())
}

func TestMintRespectsSupplyCap(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	f.registerUser(t, buyerTwo)
	q := f.createQuestion(t, 1000, 1)
	f.state.fund(buyerOne, 10_000)
	f.state.fund(buyerTwo, 10_000)

	_, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)

	_, err = f.engine.MintUnlockKey(q.Address(), buyerTwo, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, ErrNoKeysAvailable)
}

func TestMintSlotCollision(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)

	// A racing mint that read the same counter already claimed token 0.
	rival := &UnlockKey{
		Discriminator: UnlockKeyDiscriminator,
		Owner:         buyerTwo,
		Question:      q.Address(),
		TokenID:       0,
		MetadataURI:   "ipfs://meta",
		ListPrice:     big.NewInt(0),
		LastSoldPrice: big.NewInt(0),
	}
	require.NoError(t, f.state.UnlockKeyCreate(rival))

	_, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, ErrSlotOccupied)
}

func TestMintValidation(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)

	_, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "x", []byte("sealed"))
	require.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", make([]byte, MaxEncryptedKeyLength+1))
	require.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = f.engine.MintUnlockKey(q.Address(), addr(0xEE), "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, ErrUserStateNotFound)

	f.state.fund(buyerOne, 999)
	_, err = f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestListUpdateCancel(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)
	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)
	keyAddr := key.Address()

	_, err = f.engine.ListKey(keyAddr, buyerTwo, big.NewInt(2000))
	require.ErrorIs(t, err, ErrNotKeyOwner)

	_, err = f.engine.ListKey(keyAddr, buyerOne, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.engine.UpdateListing(keyAddr, buyerOne, big.NewInt(3000))
	require.ErrorIs(t, err, ErrNotListed)

	listed, err := f.engine.ListKey(keyAddr, buyerOne, big.NewInt(2000))
	require.NoError(t, err)
	require.True(t, listed.IsListed)
	require.Equal(t, int64(2000), listed.ListPrice.Int64())
	require.Equal(t, f.now, listed.ListTime)

	_, err = f.engine.ListKey(keyAddr, buyerOne, big.NewInt(2500))
	require.ErrorIs(t, err, ErrAlreadyListed)

	updated, err := f.engine.UpdateListing(keyAddr, buyerOne, big.NewInt(3000))
	require.NoError(t, err)
	require.Equal(t, int64(3000), updated.ListPrice.Int64())

	cancelled, err := f.engine.CancelListing(keyAddr, buyerOne)
	require.NoError(t, err)
	require.False(t, cancelled.IsListed)
	require.Zero(t, cancelled.ListPrice.Sign())

	_, err = f.engine.CancelListing(keyAddr, buyerOne)
	require.ErrorIs(t, err, ErrNotListed)
}

func TestBuyListedKeySplitsResale(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	f.registerUser(t, buyerTwo)
	q := f.createQuestion(t, 1_000_000, 1)
	f.state.fund(buyerOne, 1_000_000)
	f.state.fund(buyerTwo, 2_000_000)

	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed-for-one"))
	require.NoError(t, err)
	keyAddr := key.Address()

	_, err = f.engine.ListKey(keyAddr, buyerOne, big.NewInt(2_000_000))
	require.NoError(t, err)

	sellerBefore := f.state.balance(t, buyerOne)
	creatorBefore := f.state.balance(t, creator)
	treasuryBefore := f.state.balance(t, treasury)

	sold, err := f.engine.BuyListedKey(keyAddr, buyerTwo, []byte("sealed-for-two"))
	require.NoError(t, err)
	require.Equal(t, buyerTwo, sold.Owner)
	require.False(t, sold.IsListed)
	require.Equal(t, []byte("sealed-for-two"), sold.EncryptedKey)
	require.Equal(t, int64(2_000_000), sold.LastSoldPrice.Int64())
	require.Equal(t, f.now, sold.LastSoldTime)

	// 5% fee 100_000, 2% royalty 40_000, seller nets 1_860_000.
	require.Zero(t, f.state.balance(t, buyerTwo).Sign())
	require.Equal(t, int64(100_000), new(big.Int).Sub(f.state.balance(t, treasury), treasuryBefore).Int64())
	require.Equal(t, int64(40_000), new(big.Int).Sub(f.state.balance(t, creator), creatorBefore).Int64())
	require.Equal(t, int64(1_860_000), new(big.Int).Sub(f.state.balance(t, buyerOne), sellerBefore).Int64())

	mp, err := f.engine.Marketplace(f.market)
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), mp.TotalVolume.Int64())

	// The sale cleared the listing, so buying the same slot again fails.
	f.state.fund(buyerOne, 2_000_000)
	_, err = f.engine.BuyListedKey(keyAddr, buyerOne, []byte("sealed-again"))
	require.ErrorIs(t, err, ErrNotListed)
}

func TestBuyOwnKeyRejected(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)
	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)
	_, err = f.engine.ListKey(key.Address(), buyerOne, big.NewInt(2000))
	require.NoError(t, err)

	_, err = f.engine.BuyListedKey(key.Address(), buyerOne, []byte("sealed"))
	require.ErrorIs(t, err, ErrCannotBuyOwnKey)
}

func TestGlobalPauseGatesEverythingButCancel(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	f.registerUser(t, buyerTwo)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)
	f.state.fund(buyerTwo, 10_000)
	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)
	_, err = f.engine.ListKey(key.Address(), buyerOne, big.NewInt(2000))
	require.NoError(t, err)

	mp, err := f.engine.ToggleMarketplace(f.market, authority)
	require.NoError(t, err)
	require.True(t, mp.Paused)

	f.now += DefaultOperationCooldown
	_, err = f.engine.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 5)
	require.ErrorIs(t, err, ErrMarketplacePaused)
	_, err = f.engine.MintUnlockKey(q.Address(), buyerTwo, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, ErrMarketplacePaused)
	_, err = f.engine.BuyListedKey(key.Address(), buyerTwo, []byte("sealed"))
	require.ErrorIs(t, err, ErrMarketplacePaused)
	_, err = f.engine.UpdateFees(f.market, authority, 300, 100)
	require.ErrorIs(t, err, ErrMarketplacePaused)

	// Withdrawing a listing stays possible while paused.
	cancelled, err := f.engine.CancelListing(key.Address(), buyerOne)
	require.NoError(t, err)
	require.False(t, cancelled.IsListed)

	mp, err = f.engine.ToggleMarketplace(f.market, authority)
	require.NoError(t, err)
	require.False(t, mp.Paused)
}

func TestToggleOperationGatesSingleFamily(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1000, 5)
	f.state.fund(buyerOne, 10_000)

	_, err := f.engine.ToggleOperation(f.market, authority, OpMintKey)
	require.NoError(t, err)

	_, err = f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, nativecommon.ErrOperationPaused)

	// Other families keep working.
	f.now += DefaultOperationCooldown
	f.createQuestion(t, 1000, 5)

	_, err = f.engine.ToggleOperation(f.market, authority, OpMintKey)
	require.NoError(t, err)
	_, err = f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)

	_, err = f.engine.ToggleOperation(f.market, authority, Operation("bogus"))
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestAdminInstructions(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.UpdateFees(f.market, buyerOne, 300, 100)
	require.ErrorIs(t, err, ErrNotAuthority)

	_, err = f.engine.UpdateFees(f.market, authority, MaxFeeBps+1, 100)
	require.ErrorIs(t, err, ErrFeeTooHigh)

	mp, err := f.engine.UpdateFees(f.market, authority, 300, 100)
	require.NoError(t, err)
	require.Equal(t, uint32(300), mp.PlatformFeeBps)
	require.Equal(t, uint32(100), mp.CreatorRoyaltyBps)

	newTreasury := addr(0xA3)
	mp, err = f.engine.UpdateTreasury(f.market, authority, newTreasury)
	require.NoError(t, err)
	require.Equal(t, newTreasury, mp.Treasury)

	newAdmin := addr(0xA4)
	mp, err = f.engine.TransferAuthority(f.market, authority, newAdmin)
	require.NoError(t, err)
	require.Equal(t, newAdmin, mp.Authority)
	require.Equal(t, authority, mp.Founder)
	require.Equal(t, f.market, mp.Address())

	// Old authority is locked out, the new one operates at the same slot.
	_, err = f.engine.ToggleMarketplace(f.market, authority)
	require.ErrorIs(t, err, ErrNotAuthority)
	_, err = f.engine.ToggleMarketplace(f.market, newAdmin)
	require.NoError(t, err)
}

func TestEventsEmitted(t *testing.T) {
	f := newFixture(t)
	rec := &recordingEmitter{}
	f.engine.SetEmitter(rec)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	q := f.createQuestion(t, 1_000_000, 1)
	f.state.fund(buyerOne, 1_000_000)
	_, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	require.Equal(t, "market.question.created", rec.events[0].EventType())
	require.Equal(t, "market.key.minted", rec.events[1].EventType())
}

func TestFullResaleScenario(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, creator)
	f.registerUser(t, buyerOne)
	f.registerUser(t, buyerTwo)
	f.state.fund(buyerOne, 1_000_000)
	f.state.fund(buyerTwo, 2_000_000)

	q := f.createQuestion(t, 1_000_000, 1)

	key, err := f.engine.MintUnlockKey(q.Address(), buyerOne, "ipfs://meta", []byte("sealed-one"))
	require.NoError(t, err)

	// Supply is exhausted at one key.
	_, err = f.engine.MintUnlockKey(q.Address(), buyerTwo, "ipfs://meta", []byte("sealed-two"))
	require.ErrorIs(t, err, ErrNoKeysAvailable)

	_, err = f.engine.ListKey(key.Address(), buyerOne, big.NewInt(2_000_000))
	require.NoError(t, err)
	sold, err := f.engine.BuyListedKey(key.Address(), buyerTwo, []byte("sealed-two"))
	require.NoError(t, err)
	require.Equal(t, buyerTwo, sold.Owner)

	// Total settled across both legs.
	require.Equal(t, int64(50_000+100_000), f.state.balance(t, treasury).Int64())
	require.Equal(t, int64(950_000+40_000), f.state.balance(t, creator).Int64())
	require.Equal(t, int64(1_860_000), f.state.balance(t, buyerOne).Int64())
	require.Zero(t, f.state.balance(t, buyerTwo).Sign())
}

package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"qamarket/core/events"
	"qamarket/native/market"
	"qamarket/storage"
)

const testCID = "QmYwAPJzv5CZsnAzt8auVZRnDWyh7tLoDSyqR3PwHuqmWG"

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

type nodeFixture struct {
	node    *Node
	emitter *recordingEmitter
	now     int64
	market  [32]byte
}

func newNodeFixture(t *testing.T) *nodeFixture {
	t.Helper()
	f := &nodeFixture{emitter: &recordingEmitter{}, now: 1_700_000_000}
	f.node = NewNode(storage.NewMemDB())
	f.node.SetEmitter(f.emitter)
	f.node.SetNowFunc(func() int64 { return f.now })
	mp, err := f.node.Initialize(testAddr(0xA1), testAddr(0xA2), "usdq")
	require.NoError(t, err)
	f.market = mp.Address()
	return f
}

func TestNodeEndToEnd(t *testing.T) {
	f := newNodeFixture(t)
	creator := testAddr(0xB1)
	buyer := testAddr(0xC1)

	_, err := f.node.InitializeUserState(creator)
	require.NoError(t, err)
	_, err = f.node.InitializeUserState(buyer)
	require.NoError(t, err)
	require.NoError(t, f.node.FundAccount(buyer, big.NewInt(1_000_000)))

	q, err := f.node.CreateQuestion(f.market, creator, testCID, [32]byte{0x01}, big.NewInt(1_000_000), 1)
	require.NoError(t, err)

	key, err := f.node.MintUnlockKey(q.Address(), buyer, "ipfs://meta", []byte("sealed"))
	require.NoError(t, err)
	require.Equal(t, buyer, key.Owner)

	acc, err := f.node.GetAccount(testAddr(0xA2))
	require.NoError(t, err)
	require.Equal(t, int64(50_000), acc.Balance.Int64())

	got, ok, err := f.node.GetUnlockKey(key.Address())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buyer, got.Owner)
}

func TestNodeRollsBackFailedInstruction(t *testing.T) {
	f := newNodeFixture(t)
	creator := testAddr(0xB1)
	buyer := testAddr(0xC1)
	_, err := f.node.InitializeUserState(creator)
	require.NoError(t, err)
	_, err = f.node.InitializeUserState(buyer)
	require.NoError(t, err)

	q, err := f.node.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1_000_000), 1)
	require.NoError(t, err)

	// The buyer cannot cover the price. The debit happens after the question
	// and marketplace reads, so a partial commit would be visible as a
	// changed key counter or creator credit.
	require.NoError(t, f.node.FundAccount(buyer, big.NewInt(10)))
	_, err = f.node.MintUnlockKey(q.Address(), buyer, "ipfs://meta", []byte("sealed"))
	require.ErrorIs(t, err, market.ErrInsufficientFunds)

	got, ok, err := f.node.GetQuestion(q.Address())
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, got.CurrentKeys)
	require.Zero(t, got.TotalSales.Sign())

	acc, err := f.node.GetAccount(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(10), acc.Balance.Int64())

	creatorAcc, err := f.node.GetAccount(creator)
	require.NoError(t, err)
	require.Zero(t, creatorAcc.Balance.Sign())
}

func TestNodeBuffersEventsUntilCommit(t *testing.T) {
	f := newNodeFixture(t)
	require.Len(t, f.emitter.events, 1) // marketplace initialized

	creator := testAddr(0xB1)
	_, err := f.node.InitializeUserState(creator)
	require.NoError(t, err)

	// Rejected instruction: validation fails, nothing is emitted.
	_, err = f.node.CreateQuestion(f.market, creator, "bad", [32]byte{}, big.NewInt(1000), 1)
	require.ErrorIs(t, err, market.ErrInvalidContentCID)
	require.Len(t, f.emitter.events, 1)

	_, err = f.node.CreateQuestion(f.market, creator, testCID, [32]byte{}, big.NewInt(1000), 1)
	require.NoError(t, err)
	require.Len(t, f.emitter.events, 2)
	require.Equal(t, "market.question.created", f.emitter.events[1].EventType())
}

func TestNodeFundAccountRejectsNegative(t *testing.T) {
	f := newNodeFixture(t)
	require.Error(t, f.node.FundAccount(testAddr(0xC1), big.NewInt(-5)))
	require.Error(t, f.node.FundAccount(testAddr(0xC1), nil))
}

func TestNodeGetUserState(t *testing.T) {
	f := newNodeFixture(t)
	owner := testAddr(0xD1)
	_, ok, err := f.node.GetUserState(owner)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.node.InitializeUserState(owner)
	require.NoError(t, err)
	us, ok, err := f.node.GetUserState(owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, us.Owner)
}

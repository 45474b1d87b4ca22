package core

import (
	"log/slog"
	"math/big"
	"sync"

	"qamarket/core/events"
	"qamarket/core/state"
	"qamarket/core/types"
	"qamarket/native/market"
	"qamarket/storage"
)

// Node executes marketplace instructions against the ledger's store. Each
// instruction runs on a storage overlay that is flushed only on success, so a
// failure at any point inside the engine leaves no partial mutation behind.
// Events are buffered the same way and reach subscribers only after commit.
//
// The node serializes instructions, which is the in-process equivalent of the
// ledger serializing transactions that touch overlapping accounts.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() int64
	cooldown int64
}

// NewNode constructs a node over the supplied database.
func NewNode(db storage.Database) *Node {
	return &Node{
		db:       db,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		cooldown: market.DefaultOperationCooldown,
	}
}

// SetEmitter configures the downstream event sink (indexer, websocket fan-out).
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetLogger overrides the node's structured logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	n.logger = logger
}

// SetNowFunc overrides the clock handed to engines. Used in tests.
func (n *Node) SetNowFunc(now func() int64) { n.nowFn = now }

// SetOperationCooldown adjusts the per-user question-creation cooldown.
// Zero disables the check.
func (n *Node) SetOperationCooldown(seconds int64) { n.cooldown = seconds }

type eventBuffer struct {
	buffered []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	b.buffered = append(b.buffered, evt)
}

func (n *Node) withEngine(instruction string, fn func(*market.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	overlay := storage.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	buffer := &eventBuffer{}

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buffer)
	engine.SetOperationCooldown(n.cooldown)
	if n.nowFn != nil {
		engine.SetNowFunc(n.nowFn)
	}

	if err := fn(engine); err != nil {
		overlay.Discard()
		n.logger.Debug("instruction rejected", "instruction", instruction, "reason", err)
		return err
	}
	if err := overlay.Flush(); err != nil {
		n.logger.Error("instruction commit failed", "instruction", instruction, "error", err)
		return err
	}
	for _, evt := range buffer.buffered {
		n.emitter.Emit(evt)
	}
	n.logger.Info("instruction committed", "instruction", instruction)
	return nil
}

func (n *Node) reader() *state.Manager {
	return state.NewManager(n.db)
}

// Initialize writes the marketplace singleton for an authority.
func (n *Node) Initialize(authority, treasury [20]byte, paymentMint string) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("initialize", func(e *market.Engine) error {
		var err error
		mp, err = e.Initialize(authority, treasury, paymentMint)
		return err
	})
	return mp, err
}

// InitializeUserState writes the lazily created per-participant record.
func (n *Node) InitializeUserState(owner [20]byte) (*market.UserState, error) {
	var us *market.UserState
	err := n.withEngine("initialize_user_state", func(e *market.Engine) error {
		var err error
		us, err = e.InitializeUserState(owner)
		return err
	})
	return us, err
}

// ToggleMarketplace flips the global pause switch.
func (n *Node) ToggleMarketplace(marketplace [32]byte, caller [20]byte) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("toggle_marketplace", func(e *market.Engine) error {
		var err error
		mp, err = e.ToggleMarketplace(marketplace, caller)
		return err
	})
	return mp, err
}

// ToggleOperation flips one operation family's pause switch.
func (n *Node) ToggleOperation(marketplace [32]byte, caller [20]byte, op market.Operation) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("toggle_operation", func(e *market.Engine) error {
		var err error
		mp, err = e.ToggleOperation(marketplace, caller, op)
		return err
	})
	return mp, err
}

// UpdateFees replaces both fee rates.
func (n *Node) UpdateFees(marketplace [32]byte, caller [20]byte, platformFeeBps, creatorRoyaltyBps uint32) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("update_fees", func(e *market.Engine) error {
		var err error
		mp, err = e.UpdateFees(marketplace, caller, platformFeeBps, creatorRoyaltyBps)
		return err
	})
	return mp, err
}

// UpdateTreasury replaces the treasury owner.
func (n *Node) UpdateTreasury(marketplace [32]byte, caller [20]byte, newTreasury [20]byte) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("update_treasury", func(e *market.Engine) error {
		var err error
		mp, err = e.UpdateTreasury(marketplace, caller, newTreasury)
		return err
	})
	return mp, err
}

// TransferAuthority hands the admin role to a new address.
func (n *Node) TransferAuthority(marketplace [32]byte, caller [20]byte, newAuthority [20]byte) (*market.Marketplace, error) {
	var mp *market.Marketplace
	err := n.withEngine("transfer_authority", func(e *market.Engine) error {
		var err error
		mp, err = e.TransferAuthority(marketplace, caller, newAuthority)
		return err
	})
	return mp, err
}

// SetBlacklist flags or unflags a participant.
func (n *Node) SetBlacklist(marketplace [32]byte, caller [20]byte, user [20]byte, flagged bool) (*market.UserState, error) {
	var us *market.UserState
	err := n.withEngine("set_blacklist", func(e *market.Engine) error {
		var err error
		us, err = e.SetBlacklist(marketplace, caller, user, flagged)
		return err
	})
	return us, err
}

// CreateQuestion writes a new gated question and returns it.
func (n *Node) CreateQuestion(marketplace [32]byte, creator [20]byte, contentCID string, contentHash [32]byte, unlockPrice *big.Int, maxKeys uint64) (*market.Question, error) {
	var q *market.Question
	err := n.withEngine("create_question", func(e *market.Engine) error {
		var err error
		q, err = e.CreateQuestion(marketplace, creator, contentCID, contentHash, unlockPrice, maxKeys)
		return err
	})
	return q, err
}

// MintUnlockKey performs primary issuance against a question.
func (n *Node) MintUnlockKey(question [32]byte, buyer [20]byte, metadataURI string, encryptedKey []byte) (*market.UnlockKey, error) {
	var k *market.UnlockKey
	err := n.withEngine("mint_unlock_key", func(e *market.Engine) error {
		var err error
		k, err = e.MintUnlockKey(question, buyer, metadataURI, encryptedKey)
		return err
	})
	return k, err
}

// ListKey puts an owned key on the secondary market.
func (n *Node) ListKey(key [32]byte, seller [20]byte, price *big.Int) (*market.UnlockKey, error) {
	var k *market.UnlockKey
	err := n.withEngine("list_key", func(e *market.Engine) error {
		var err error
		k, err = e.ListKey(key, seller, price)
		return err
	})
	return k, err
}

// UpdateListing replaces a listing's asking price.
func (n *Node) UpdateListing(key [32]byte, seller [20]byte, newPrice *big.Int) (*market.UnlockKey, error) {
	var k *market.UnlockKey
	err := n.withEngine("update_listing", func(e *market.Engine) error {
		var err error
		k, err = e.UpdateListing(key, seller, newPrice)
		return err
	})
	return k, err
}

// CancelListing withdraws a listing. Always permitted.
func (n *Node) CancelListing(key [32]byte, seller [20]byte) (*market.UnlockKey, error) {
	var k *market.UnlockKey
	err := n.withEngine("cancel_listing", func(e *market.Engine) error {
		var err error
		k, err = e.CancelListing(key, seller)
		return err
	})
	return k, err
}

// BuyListedKey settles a secondary-market sale.
func (n *Node) BuyListedKey(key [32]byte, buyer [20]byte, newEncryptedKey []byte) (*market.UnlockKey, error) {
	var k *market.UnlockKey
	err := n.withEngine("buy_listed_key", func(e *market.Engine) error {
		var err error
		k, err = e.BuyListedKey(key, buyer, newEncryptedKey)
		return err
	})
	return k, err
}

// FundAccount credits payment tokens to an address. Used for genesis
// allocations and test fixtures; it bypasses instruction gating on purpose.
func (n *Node) FundAccount(addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if amount == nil || amount.Sign() < 0 {
		return market.ErrInvalidPrice
	}
	manager := state.NewManager(n.db)
	account, err := manager.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return manager.PutAccount(addr, account)
}

// GetMarketplace loads the marketplace record at the supplied slot.
func (n *Node) GetMarketplace(addr [32]byte) (*market.Marketplace, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reader().MarketplaceGet(addr)
}

// GetQuestion loads the question record at the supplied slot.
func (n *Node) GetQuestion(addr [32]byte) (*market.Question, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reader().QuestionGet(addr)
}

// GetUnlockKey loads the key record at the supplied slot.
func (n *Node) GetUnlockKey(addr [32]byte) (*market.UnlockKey, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reader().UnlockKeyGet(addr)
}

// GetUserState loads the user record for an owner.
func (n *Node) GetUserState(owner [20]byte) (*market.UserState, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reader().UserStateGet(market.UserStateAddress(owner))
}

// GetAccount loads the payment-token account for an address.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reader().GetAccount(addr)
}

package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"qamarket/core/types"
	"qamarket/storage"
)

// Manager provides typed access to the ledger's key-value store. All storage
// keys are keccak256 hashes of a prefix plus the record's derived address, so
// a record's location follows from its seeds alone.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix []byte, seed []byte) []byte {
	buf := make([]byte, len(prefix)+len(seed))
	copy(buf, prefix)
	copy(buf[len(prefix):], seed)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) putRecord(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

// createRecord claims a slot exclusively. It is the ledger-side half of the
// derive-then-create-exclusively scheme: if the slot already holds data the
// write is rejected outright rather than overwriting.
func (m *Manager) createRecord(key []byte, record interface{}) error {
	occupied, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if occupied {
		return errSlotOccupied
	}
	return m.putRecord(key, record)
}

// GetAccount loads the payment-token account for an address. A missing
// account reads as zero-valued rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	key := storageKey(accountPrefix, addr[:])
	account := new(types.Account)
	ok, err := m.getRecord(key, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

// PutAccount stores the payment-token account for an address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	key := storageKey(accountPrefix, addr[:])
	return m.putRecord(key, account)
}

package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"qamarket/crypto"
)

// Genesis describes the initial ledger state: the marketplace singleton and
// the opening payment-token balances.
type Genesis struct {
	Marketplace GenesisMarketplace  `yaml:"marketplace"`
	Allocations []GenesisAllocation `yaml:"allocations"`
}

// GenesisMarketplace seeds the control record.
type GenesisMarketplace struct {
	Authority   string `yaml:"authority"`
	Treasury    string `yaml:"treasury"`
	PaymentMint string `yaml:"paymentMint"`
}

// GenesisAllocation funds one address at boot.
type GenesisAllocation struct {
	Address string `yaml:"address"`
	Amount  string `yaml:"amount"`
}

// LoadGenesis parses and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis := &Genesis{}
	if err := yaml.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := genesis.Validate(); err != nil {
		return nil, err
	}
	return genesis, nil
}

// Validate checks addresses and amounts without touching state.
func (g *Genesis) Validate() error {
	if _, err := g.AuthorityAddress(); err != nil {
		return fmt.Errorf("genesis: invalid authority: %w", err)
	}
	if _, err := g.TreasuryAddress(); err != nil {
		return fmt.Errorf("genesis: invalid treasury: %w", err)
	}
	if strings.TrimSpace(g.Marketplace.PaymentMint) == "" {
		return fmt.Errorf("genesis: payment mint must not be empty")
	}
	for i, alloc := range g.Allocations {
		if _, err := decodeGenesisAddress(alloc.Address); err != nil {
			return fmt.Errorf("genesis: allocation %d: %w", i, err)
		}
		if _, err := parseGenesisAmount(alloc.Amount); err != nil {
			return fmt.Errorf("genesis: allocation %d: %w", i, err)
		}
	}
	return nil
}

// AuthorityAddress decodes the marketplace authority.
func (g *Genesis) AuthorityAddress() ([20]byte, error) {
	return decodeGenesisAddress(g.Marketplace.Authority)
}

// TreasuryAddress decodes the marketplace treasury.
func (g *Genesis) TreasuryAddress() ([20]byte, error) {
	return decodeGenesisAddress(g.Marketplace.Treasury)
}

// Funding is one decoded genesis allocation.
type Funding struct {
	Address [20]byte
	Amount  *big.Int
}

// DecodedAllocations returns the funding list in binary form.
func (g *Genesis) DecodedAllocations() ([]Funding, error) {
	out := make([]Funding, 0, len(g.Allocations))
	for _, alloc := range g.Allocations {
		addr, err := decodeGenesisAddress(alloc.Address)
		if err != nil {
			return nil, err
		}
		amount, err := parseGenesisAmount(alloc.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, Funding{Address: addr, Amount: amount})
	}
	return out, nil
}

func decodeGenesisAddress(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseGenesisAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

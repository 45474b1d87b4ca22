package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"qamarket/core"
	"qamarket/crypto"
	"qamarket/native/market"
	"qamarket/storage"
)

func genesisAddr(b byte) string {
	var a [20]byte
	a[0] = b
	return crypto.MustNewAddress(crypto.QAPrefix, a[:]).String()
}

func writeGenesisFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	contents := `
marketplace:
  authority: ` + genesisAddr(0xA1) + `
  treasury: ` + genesisAddr(0xA2) + `
  paymentMint: USDQ
allocations:
  - address: ` + genesisAddr(0xC1) + `
    amount: "2500000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestApplyGenesisSeedsMarketplaceAndBalances(t *testing.T) {
	node := core.NewNode(storage.NewMemDB())
	logger := slog.Default()
	path := writeGenesisFile(t)

	require.NoError(t, applyGenesis(node, path, logger))

	var authority [20]byte
	authority[0] = 0xA1
	mp, ok, err := node.GetMarketplace(market.MarketplaceAddress(authority))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "USDQ", mp.PaymentMint)

	var funded [20]byte
	funded[0] = 0xC1
	account, err := node.GetAccount(funded)
	require.NoError(t, err)
	require.Equal(t, int64(2_500_000), account.Balance.Int64())
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	node := core.NewNode(storage.NewMemDB())
	logger := slog.Default()
	path := writeGenesisFile(t)

	require.NoError(t, applyGenesis(node, path, logger))
	require.NoError(t, applyGenesis(node, path, logger))

	var funded [20]byte
	funded[0] = 0xC1
	account, err := node.GetAccount(funded)
	require.NoError(t, err)
	require.Equal(t, int64(2_500_000), account.Balance.Int64())
}

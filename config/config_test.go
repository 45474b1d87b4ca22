package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"qamarket/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "qamarket-local", cfg.NetworkName)
	require.Equal(t, "QAMARKET_RPC_SECRET", cfg.JWTSecretEnv)
	require.FileExists(t, path)

	// Reloading the written default round-trips.
	cfg2, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, cfg2.RPCAddress)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = ":9000"
DataDir = "/tmp/qa"
RateLimitPerSecond = 50.0
RateLimitBurst = 100
ReadTimeout = "5s"
`), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)
	require.Equal(t, "/tmp/qa", cfg.DataDir)
	require.Equal(t, 50.0, cfg.RateLimitPerSecond)
	require.Equal(t, 100, cfg.RateLimitBurst)
	require.Equal(t, "5s", cfg.ReadTimeout.String())
}

func TestValidateRejectsNegativeRateLimit(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.RateLimitPerSecond = -1
	require.Error(t, cfg.Validate())
}

func testBech32(b byte) string {
	var a [20]byte
	a[0] = b
	return crypto.MustNewAddress(crypto.QAPrefix, a[:]).String()
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	authority := testBech32(0xA1)
	treasury := testBech32(0xA2)
	funded := testBech32(0xC1)
	require.NoError(t, os.WriteFile(path, []byte(`
marketplace:
  authority: `+authority+`
  treasury: `+treasury+`
  paymentMint: USDQ
allocations:
  - address: `+funded+`
    amount: "1000000"
`), 0o600))

	genesis, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, "USDQ", genesis.Marketplace.PaymentMint)

	allocs, err := genesis.DecodedAllocations()
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Equal(t, int64(1_000_000), allocs[0].Amount.Int64())

	addr, err := genesis.AuthorityAddress()
	require.NoError(t, err)
	require.Equal(t, byte(0xA1), addr[0])
}

func TestGenesisRejectsBadAllocation(t *testing.T) {
	genesis := &Genesis{
		Marketplace: GenesisMarketplace{
			Authority:   testBech32(0xA1),
			Treasury:    testBech32(0xA2),
			PaymentMint: "USDQ",
		},
		Allocations: []GenesisAllocation{{Address: "not-an-address", Amount: "5"}},
	}
	require.Error(t, genesis.Validate())

	genesis.Allocations = []GenesisAllocation{{Address: testBech32(0xC1), Amount: "-5"}}
	require.Error(t, genesis.Validate())
}

package market

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPrimary(t *testing.T) {
	fee, net := SplitPrimary(big.NewInt(1_000_000), 500)
	require.Equal(t, int64(50_000), fee.Int64())
	require.Equal(t, int64(950_000), net.Int64())
}

func TestSplitPrimaryRoundsFeeDown(t *testing.T) {
	// 5% of 999 is 49.95; the fee truncates and the creator keeps the rest.
	fee, net := SplitPrimary(big.NewInt(999), 500)
	require.Equal(t, int64(49), fee.Int64())
	require.Equal(t, int64(950), net.Int64())
	require.Equal(t, int64(999), fee.Int64()+net.Int64())
}

func TestSplitPrimaryZeroFee(t *testing.T) {
	fee, net := SplitPrimary(big.NewInt(1000), 0)
	require.Zero(t, fee.Sign())
	require.Equal(t, int64(1000), net.Int64())
}

func TestSplitResale(t *testing.T) {
	fee, royalty, net := SplitResale(big.NewInt(2_000_000), 500, 200)
	require.Equal(t, int64(100_000), fee.Int64())
	require.Equal(t, int64(40_000), royalty.Int64())
	require.Equal(t, int64(1_860_000), net.Int64())
}

func TestSplitResaleSumsExactly(t *testing.T) {
	for _, price := range []int64{1, 3, 999, 10_001, 123_456_789} {
		fee, royalty, net := SplitResale(big.NewInt(price), 500, 200)
		total := new(big.Int).Add(fee, royalty)
		total.Add(total, net)
		require.Equal(t, price, total.Int64(), "price %d", price)
	}
}

package market

import "math/big"

var bpsDenominator = big.NewInt(10_000)

func bpsShare(amount *big.Int, bps uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return share.Div(share, bpsDenominator)
}

// SplitPrimary divides a primary-sale price into the treasury fee and the
// creator's proceeds. Integer division truncates toward the creator: the fee
// is rounded down and the creator receives the remainder, so the two parts
// always sum exactly to the price.
func SplitPrimary(price *big.Int, platformFeeBps uint32) (fee, creatorNet *big.Int) {
	fee = bpsShare(price, platformFeeBps)
	creatorNet = new(big.Int).Sub(price, fee)
	return fee, creatorNet
}

// SplitResale divides a secondary-sale price three ways: the treasury fee,
// the original creator's royalty, and the seller's proceeds. Both the fee and
// the royalty round down; the seller receives the remainder, so the three
// parts always sum exactly to the price.
func SplitResale(price *big.Int, platformFeeBps, creatorRoyaltyBps uint32) (fee, royalty, sellerNet *big.Int) {
	fee = bpsShare(price, platformFeeBps)
	royalty = bpsShare(price, creatorRoyaltyBps)
	sellerNet = new(big.Int).Sub(price, fee)
	sellerNet = sellerNet.Sub(sellerNet, royalty)
	return fee, royalty, sellerNet
}

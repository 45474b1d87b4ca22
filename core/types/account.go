package types

import "math/big"

// Account tracks a participant's payment-token holdings. The balance is kept
// as a big integer in the token's smallest denomination.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

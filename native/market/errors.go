package market

import "errors"

// Authorization failures.
var (
	ErrNotAuthority    = errors.New("market engine: caller is not the marketplace authority")
	ErrNotKeyOwner     = errors.New("market engine: caller is not the key owner")
	ErrUserBlacklisted = errors.New("market engine: user is blacklisted")
)

// State-precondition failures.
var (
	ErrMarketplacePaused = errors.New("market engine: marketplace is paused")
	ErrQuestionInactive  = errors.New("market engine: question is inactive")
	ErrNoKeysAvailable   = errors.New("market engine: no keys available for this question")
	ErrNotListed         = errors.New("market engine: key not listed for sale")
	ErrAlreadyListed     = errors.New("market engine: key is already listed")
	ErrCannotBuyOwnKey   = errors.New("market engine: cannot buy your own key")
	ErrRateLimited       = errors.New("market engine: operation cooldown not elapsed")
	ErrTooManyQuestions  = errors.New("market engine: question limit reached for user")
)

// Input-validation failures.
var (
	ErrInvalidPrice      = errors.New("market engine: invalid price")
	ErrInvalidKeyCount   = errors.New("market engine: invalid key count")
	ErrInvalidContentCID = errors.New("market engine: invalid content cid")
	ErrInvalidMetadata   = errors.New("market engine: invalid metadata uri")
	ErrInvalidKeyLength  = errors.New("market engine: encrypted key too long")
	ErrInvalidOperation  = errors.New("market engine: unknown operation")
	ErrFeeTooHigh        = errors.New("market engine: fee too high")
)

// Concurrency-collision and existence failures. ErrSlotOccupied is the race
// loser's outcome when two transactions derive the same fresh slot.
var (
	ErrSlotOccupied        = errors.New("market engine: record already initialized at derived address")
	ErrMarketplaceExists   = errors.New("market engine: marketplace already initialized")
	ErrMarketplaceNotFound = errors.New("market engine: marketplace not found")
	ErrUserStateExists     = errors.New("market engine: user state already initialized")
	ErrUserStateNotFound   = errors.New("market engine: user state not found")
	ErrQuestionNotFound    = errors.New("market engine: question not found")
	ErrKeyNotFound         = errors.New("market engine: unlock key not found")
)

// Resource failures.
var ErrInsufficientFunds = errors.New("market engine: insufficient funds")

var errNilState = errors.New("market engine: state not configured")

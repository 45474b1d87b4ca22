package market

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	codeNotFound = -32040
	codeRejected = -32030
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 200 * time.Millisecond
	defaultCacheTTL   = 5 * time.Second
)

// Error is a typed rejection returned by the marketplace program. Requests
// that fail this way are never retried: the ledger saw them and said no.
type Error struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("market rpc: %s (code %d)", e.Message, e.Code)
}

// IsNotFound reports whether the error is a typed record-not-found rejection.
func IsNotFound(err error) bool {
	rpcErr, ok := err.(*Error)
	return ok && rpcErr.Code == codeNotFound
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken attaches a bearer token to every request. Required for the
// authority methods.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithRetry bounds transport-failure retries. Attempts beyond the first back
// off exponentially from base.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// WithCacheTTL adjusts how long read results are served from cache.
// Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache.ttl = ttl }
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

type recordCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func (rc *recordCache) get(key string) (interface{}, bool) {
	if rc.ttl <= 0 {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	entry, ok := rc.entries[key]
	if !ok || time.Since(entry.storedAt) > rc.ttl {
		return nil, false
	}
	return entry.value, true
}

func (rc *recordCache) put(key string, value interface{}) {
	if rc.ttl <= 0 {
		return
	}
	rc.mu.Lock()
	rc.entries[key] = cacheEntry{value: value, storedAt: time.Now()}
	rc.mu.Unlock()
}

func (rc *recordCache) invalidate(keys ...string) {
	rc.mu.Lock()
	for _, key := range keys {
		delete(rc.entries, key)
	}
	rc.mu.Unlock()
}

func (rc *recordCache) invalidateAll() {
	rc.mu.Lock()
	rc.entries = make(map[string]cacheEntry)
	rc.mu.Unlock()
}

// Client talks to a marketplace node over JSON-RPC. Reads are served from a
// short-lived cache; every mutation invalidates the records it touched.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	maxRetries int
	retryBase  time.Duration
	cache      recordCache
}

// NewClient constructs a client against the node's /rpc endpoint base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	c.cache.ttl = defaultCacheTTL
	c.cache.entries = make(map[string]cacheEntry)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvalidateCache drops all cached records.
func (c *Client) InvalidateCache() { c.cache.invalidateAll() }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      string        `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// call performs one JSON-RPC request. Transport failures and 5xx responses
// are retried with exponential backoff; typed rejections are returned as-is.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      uuid.NewString(),
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("market rpc: server error %d", resp.StatusCode)
			continue
		}

		var decoded rpcResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if decoded.Error != nil {
			return &Error{Code: decoded.Error.Code, Message: decoded.Error.Message, Data: decoded.Error.Data}
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(decoded.Result, out)
	}
	return fmt.Errorf("market rpc: %s failed after %d attempts: %w", method, c.maxRetries+1, lastErr)
}

// Initialize creates the marketplace singleton. Authority method.
func (c *Client) Initialize(ctx context.Context, authority, treasury, paymentMint string) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_initialize", map[string]interface{}{
		"authority":   authority,
		"treasury":    treasury,
		"paymentMint": paymentMint,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+mp.Address, &mp)
	return &mp, nil
}

// InitializeUserState creates the caller's participant record.
func (c *Client) InitializeUserState(ctx context.Context, owner string) (*UserState, error) {
	var us UserState
	err := c.call(ctx, "qa_initializeUserState", map[string]interface{}{"owner": owner}, &us)
	if err != nil {
		return nil, err
	}
	c.cache.put("user:"+owner, &us)
	return &us, nil
}

// EnsureUserState fetches the participant record, creating it on first use.
// A concurrent creation racing this call is treated as success.
func (c *Client) EnsureUserState(ctx context.Context, owner string) (*UserState, error) {
	us, err := c.GetUserState(ctx, owner)
	if err == nil {
		return us, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	us, err = c.InitializeUserState(ctx, owner)
	if err == nil {
		return us, nil
	}
	if rpcErr, ok := err.(*Error); ok && rpcErr.Code == codeRejected {
		return c.GetUserState(ctx, owner)
	}
	return nil, err
}

// ToggleMarketplace flips the global pause switch. Authority method.
func (c *Client) ToggleMarketplace(ctx context.Context, marketplace, caller string) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_toggleMarketplace", map[string]interface{}{
		"marketplace": marketplace,
		"caller":      caller,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+marketplace, &mp)
	return &mp, nil
}

// ToggleOperation flips a single operation family's pause switch. Authority
// method.
func (c *Client) ToggleOperation(ctx context.Context, marketplace, caller, operation string) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_toggleOperation", map[string]interface{}{
		"marketplace": marketplace,
		"caller":      caller,
		"operation":   operation,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+marketplace, &mp)
	return &mp, nil
}

// UpdateFees replaces both fee rates. Authority method.
func (c *Client) UpdateFees(ctx context.Context, marketplace, caller string, platformFeeBps, creatorRoyaltyBps uint32) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_updateFees", map[string]interface{}{
		"marketplace":       marketplace,
		"caller":            caller,
		"platformFeeBps":    platformFeeBps,
		"creatorRoyaltyBps": creatorRoyaltyBps,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+marketplace, &mp)
	return &mp, nil
}

// UpdateTreasury replaces the treasury owner. Authority method.
func (c *Client) UpdateTreasury(ctx context.Context, marketplace, caller, newTreasury string) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_updateTreasury", map[string]interface{}{
		"marketplace": marketplace,
		"caller":      caller,
		"newTreasury": newTreasury,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+marketplace, &mp)
	return &mp, nil
}

// TransferAuthority hands the admin role to a new address. Authority method.
func (c *Client) TransferAuthority(ctx context.Context, marketplace, caller, newAuthority string) (*Marketplace, error) {
	var mp Marketplace
	err := c.call(ctx, "qa_transferAuthority", map[string]interface{}{
		"marketplace":  marketplace,
		"caller":       caller,
		"newAuthority": newAuthority,
	}, &mp)
	if err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+marketplace, &mp)
	return &mp, nil
}

// Blacklist flags a participant. Authority method.
func (c *Client) Blacklist(ctx context.Context, marketplace, caller, user string) (*UserState, error) {
	return c.setBlacklist(ctx, "qa_blacklist", marketplace, caller, user)
}

// Unblacklist clears a participant's flag. Authority method.
func (c *Client) Unblacklist(ctx context.Context, marketplace, caller, user string) (*UserState, error) {
	return c.setBlacklist(ctx, "qa_unblacklist", marketplace, caller, user)
}

func (c *Client) setBlacklist(ctx context.Context, method, marketplace, caller, user string) (*UserState, error) {
	var us UserState
	err := c.call(ctx, method, map[string]interface{}{
		"marketplace": marketplace,
		"caller":      caller,
		"user":        user,
	}, &us)
	if err != nil {
		return nil, err
	}
	c.cache.put("user:"+user, &us)
	return &us, nil
}

// CreateQuestion publishes a gated question. The content hash commits to the
// plaintext answer; use ContentHashHex to derive it.
func (c *Client) CreateQuestion(ctx context.Context, marketplace, creator, contentCID, contentHash, unlockPrice string, maxKeys uint64) (*Question, error) {
	var q Question
	err := c.call(ctx, "qa_createQuestion", map[string]interface{}{
		"marketplace": marketplace,
		"creator":     creator,
		"contentCid":  contentCID,
		"contentHash": contentHash,
		"unlockPrice": unlockPrice,
		"maxKeys":     maxKeys,
	}, &q)
	if err != nil {
		return nil, err
	}
	c.cache.invalidate("marketplace:"+marketplace, "user:"+creator)
	c.cache.put("question:"+q.Address, &q)
	return &q, nil
}

// MintUnlockKey performs primary issuance. The encrypted key is raw bytes;
// the client handles the wire encoding.
func (c *Client) MintUnlockKey(ctx context.Context, question, buyer, metadataURI string, encryptedKey []byte) (*UnlockKey, error) {
	var key UnlockKey
	err := c.call(ctx, "qa_mintUnlockKey", map[string]interface{}{
		"question":     question,
		"buyer":        buyer,
		"metadataUri":  metadataURI,
		"encryptedKey": base64.StdEncoding.EncodeToString(encryptedKey),
	}, &key)
	if err != nil {
		return nil, err
	}
	c.cache.invalidate("question:"+question, "user:"+buyer)
	c.cache.put("key:"+key.Address, &key)
	return &key, nil
}

// ListKey puts an owned key on the secondary market.
func (c *Client) ListKey(ctx context.Context, key, seller, price string) (*UnlockKey, error) {
	return c.listingMutation(ctx, "qa_listKey", map[string]interface{}{
		"key":    key,
		"seller": seller,
		"price":  price,
	}, key)
}

// UpdateListing replaces a listing's asking price.
func (c *Client) UpdateListing(ctx context.Context, key, seller, price string) (*UnlockKey, error) {
	return c.listingMutation(ctx, "qa_updateListing", map[string]interface{}{
		"key":    key,
		"seller": seller,
		"price":  price,
	}, key)
}

// CancelListing withdraws a listing.
func (c *Client) CancelListing(ctx context.Context, key, seller string) (*UnlockKey, error) {
	return c.listingMutation(ctx, "qa_cancelListing", map[string]interface{}{
		"key":    key,
		"seller": seller,
	}, key)
}

func (c *Client) listingMutation(ctx context.Context, method string, params map[string]interface{}, keyAddr string) (*UnlockKey, error) {
	var key UnlockKey
	if err := c.call(ctx, method, params, &key); err != nil {
		return nil, err
	}
	c.cache.put("key:"+keyAddr, &key)
	return &key, nil
}

// BuyListedKey settles a secondary-market purchase. The buyer supplies a
// re-encrypted copy of the answer key.
func (c *Client) BuyListedKey(ctx context.Context, key, buyer string, newEncryptedKey []byte) (*UnlockKey, error) {
	var bought UnlockKey
	err := c.call(ctx, "qa_buyListedKey", map[string]interface{}{
		"key":             key,
		"buyer":           buyer,
		"newEncryptedKey": base64.StdEncoding.EncodeToString(newEncryptedKey),
	}, &bought)
	if err != nil {
		return nil, err
	}
	c.cache.invalidate("question:"+bought.Question, "user:"+buyer)
	c.cache.put("key:"+key, &bought)
	return &bought, nil
}

// GetMarketplace loads a marketplace record, from cache when fresh.
func (c *Client) GetMarketplace(ctx context.Context, address string) (*Marketplace, error) {
	if cached, ok := c.cache.get("marketplace:" + address); ok {
		return cached.(*Marketplace), nil
	}
	var mp Marketplace
	if err := c.call(ctx, "qa_getMarketplace", map[string]interface{}{"address": address}, &mp); err != nil {
		return nil, err
	}
	c.cache.put("marketplace:"+address, &mp)
	return &mp, nil
}

// GetQuestion loads a question record, from cache when fresh.
func (c *Client) GetQuestion(ctx context.Context, address string) (*Question, error) {
	if cached, ok := c.cache.get("question:" + address); ok {
		return cached.(*Question), nil
	}
	var q Question
	if err := c.call(ctx, "qa_getQuestion", map[string]interface{}{"address": address}, &q); err != nil {
		return nil, err
	}
	c.cache.put("question:"+address, &q)
	return &q, nil
}

// GetUnlockKey loads an unlock-key record, from cache when fresh.
func (c *Client) GetUnlockKey(ctx context.Context, address string) (*UnlockKey, error) {
	if cached, ok := c.cache.get("key:" + address); ok {
		return cached.(*UnlockKey), nil
	}
	var key UnlockKey
	if err := c.call(ctx, "qa_getUnlockKey", map[string]interface{}{"address": address}, &key); err != nil {
		return nil, err
	}
	c.cache.put("key:"+address, &key)
	return &key, nil
}

// GetUserState loads a participant record, from cache when fresh.
func (c *Client) GetUserState(ctx context.Context, owner string) (*UserState, error) {
	if cached, ok := c.cache.get("user:" + owner); ok {
		return cached.(*UserState), nil
	}
	var us UserState
	if err := c.call(ctx, "qa_getUserState", map[string]interface{}{"owner": owner}, &us); err != nil {
		return nil, err
	}
	c.cache.put("user:"+owner, &us)
	return &us, nil
}

// GetBalance loads the payment-token balance for an address. Never cached.
func (c *Client) GetBalance(ctx context.Context, owner string) (*Balance, error) {
	var bal Balance
	if err := c.call(ctx, "qa_getBalance", map[string]interface{}{"owner": owner}, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qamarket/core"
	"qamarket/crypto"
	"qamarket/storage"
)

const testCID = "QmYwAPJzv5CZsnAzt8auVZRnDWyh7tLoDSyqR3PwHuqmWG"

func testBech32(b byte) string {
	var a [20]byte
	a[0] = b
	return crypto.MustNewAddress(crypto.QAPrefix, a[:]).String()
}

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

type rpcFixture struct {
	t      *testing.T
	server *httptest.Server
	node   *core.Node
	token  string
}

func newRPCFixture(t *testing.T, secret []byte) *rpcFixture {
	t.Helper()
	node := core.NewNode(storage.NewMemDB())
	srv := NewServer(node, Config{JWTSecret: secret}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	f := &rpcFixture{t: t, server: ts, node: node}
	if len(secret) > 0 {
		token, err := IssueToken(secret, "ops", time.Hour)
		require.NoError(t, err)
		f.token = token
	}
	return f
}

func (f *rpcFixture) call(method string, params interface{}, authed bool) (*http.Response, RPCResponse) {
	f.t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	}
	body, err := json.Marshal(payload)
	require.NoError(f.t, err)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if authed && f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	var decoded RPCResponse
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultAs(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealthz(t *testing.T) {
	f := newRPCFixture(t, nil)
	resp, err := f.server.Client().Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRPCFullFlow(t *testing.T) {
	f := newRPCFixture(t, nil)
	authority := testBech32(0xA1)
	treasury := testBech32(0xA2)
	creator := testBech32(0xB1)
	buyer := testBech32(0xC1)

	var mp marketplaceResult
	_, resp := f.call("qa_initialize", initializeParams{
		Authority: authority, Treasury: treasury, PaymentMint: "usdq",
	}, false)
	resultAs(t, resp, &mp)
	require.Equal(t, "USDQ", mp.PaymentMint)
	require.Equal(t, authority, mp.Authority)

	for _, owner := range []string{creator, buyer} {
		_, resp = f.call("qa_initializeUserState", ownerParams{Owner: owner}, false)
		var us userStateResult
		resultAs(t, resp, &us)
		require.Equal(t, owner, us.Owner)
	}

	require.NoError(t, f.node.FundAccount(testAddr(0xC1), mustBig(t, "1000000")))

	var q questionResult
	_, resp = f.call("qa_createQuestion", createQuestionParams{
		Marketplace: mp.Address,
		Creator:     creator,
		ContentCID:  testCID,
		UnlockPrice: "1000000",
		MaxKeys:     1,
	}, false)
	resultAs(t, resp, &q)
	require.Equal(t, uint64(0), q.Index)
	require.True(t, q.IsActive)

	var key unlockKeyResult
	_, resp = f.call("qa_mintUnlockKey", mintUnlockKeyParams{
		Question:     q.Address,
		Buyer:        buyer,
		MetadataURI:  "ipfs://meta",
		EncryptedKey: "c2VhbGVk", // "sealed"
	}, false)
	resultAs(t, resp, &key)
	require.Equal(t, buyer, key.Owner)

	var bal balanceResult
	_, resp = f.call("qa_getBalance", ownerParams{Owner: treasury}, false)
	resultAs(t, resp, &bal)
	require.Equal(t, "50000", bal.Balance)

	httpResp, errResp := f.call("qa_mintUnlockKey", mintUnlockKeyParams{
		Question:     q.Address,
		Buyer:        buyer,
		MetadataURI:  "ipfs://meta",
		EncryptedKey: "c2VhbGVk",
	}, false)
	require.Equal(t, http.StatusConflict, httpResp.StatusCode)
	require.NotNil(t, errResp.Error)
	require.Equal(t, codeRejected, errResp.Error.Code)
}

func TestRPCErrorMapping(t *testing.T) {
	f := newRPCFixture(t, nil)
	httpResp, resp := f.call("qa_getQuestion", slotParams{Address: fmt.Sprintf("0x%064x", 0)}, false)
	require.Equal(t, http.StatusNotFound, httpResp.StatusCode)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	httpResp, resp = f.call("qa_bogusMethod", map[string]string{}, false)
	require.Equal(t, http.StatusNotFound, httpResp.StatusCode)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRPCAdminRequiresToken(t *testing.T) {
	f := newRPCFixture(t, []byte("test-secret"))
	authority := testBech32(0xA1)
	treasury := testBech32(0xA2)
	params := initializeParams{Authority: authority, Treasury: treasury, PaymentMint: "usdq"}

	httpResp, resp := f.call("qa_initialize", params, false)
	require.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	_, resp = f.call("qa_initialize", params, true)
	var mp marketplaceResult
	resultAs(t, resp, &mp)
	require.Equal(t, authority, mp.Authority)
}

func TestRPCRejectsMalformedEnvelope(t *testing.T) {
	f := newRPCFixture(t, nil)
	resp, err := f.server.Client().Post(f.server.URL+"/rpc", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = f.server.Client().Post(f.server.URL+"/rpc", "application/json", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func mustBig(t *testing.T, v string) *big.Int {
	t.Helper()
	amount, err := parseAmount(v)
	require.NoError(t, err)
	return amount
}

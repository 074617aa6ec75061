package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"nhbmarket/core"
	"nhbmarket/core/genesis"
	"nhbmarket/crypto"
	"nhbmarket/storage"
)

func testAddress(fill byte) [20]byte {
	return [20]byte(bytes.Repeat([]byte{fill}, 20))
}

var (
	operator = testAddress(0x01)
	seller   = testAddress(0x5E)
	buyer    = testAddress(0xB0)
	stranger = testAddress(0xEE)
)

func newTestNode(t *testing.T) *core.Node {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return 1_700_000_000 })
	spec, err := genesis.ParseGenesisSpec([]byte(`{
		"owner": "` + crypto.FormatAddress(operator) + `",
		"alloc": {
			"` + crypto.FormatAddress(operator) + `": "1000",
			"` + crypto.FormatAddress(buyer) + `": "1000"
		},
		"categories": ["books"]
	}`))
	require.NoError(t, err)
	require.NoError(t, node.Bootstrap(spec))
	return node
}

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *core.Node) {
	t.Helper()
	node := newTestNode(t)
	return NewServer(node, nil, nil, cfg, nil), node
}

type rpcResult struct {
	status int
	resp   struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
	}
}

func callRPC(t *testing.T, s *Server, method string, params interface{}, header http.Header) rpcResult {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": jsonRPCVersion, "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:4000"
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var out rpcResult
	out.status = rec.Code
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.resp), rec.Body.String())
	return out
}

func (r rpcResult) decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.Nil(t, r.resp.Error)
	require.NoError(t, json.Unmarshal(r.resp.Result, dst))
}

func (r rpcResult) code(t *testing.T) int {
	t.Helper()
	require.NotNil(t, r.resp.Error)
	return r.resp.Error.Code
}

package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
)

func newChainIDServer(t *testing.T, chainIDHex string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_chainId" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + chainIDHex + `"}`))
	}))
	t.Cleanup(srv.Close)

	rpcClient, err := rpc.DialHTTP(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := NewClientFromRPC(Profile{Name: "base", ChainID: 8453}, rpcClient)
	t.Cleanup(client.Close)
	return client
}

func TestVerifyChain(t *testing.T) {
	if err := newChainIDServer(t, "0x2105").VerifyChain(context.Background()); err != nil {
		t.Fatalf("matching chain should verify: %v", err)
	}

	err := newChainIDServer(t, "0x1").VerifyChain(context.Background())
	if err == nil || !strings.Contains(err.Error(), "expected base (8453)") {
		t.Fatalf("expected chain mismatch error, got %v", err)
	}
}

package e2e

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// stubNode is a minimal W Chain node: every account holds the same balances
// and every submitted transaction is mined successfully.
type stubNode struct {
	mu      sync.Mutex
	native  *big.Int
	tokens  *big.Int
	nonces  map[string]uint64
	sent    []*types.Transaction
	chainID string
}

func newStubNode(native, tokens *big.Int) *stubNode {
	return &stubNode{
		native:  native,
		tokens:  tokens,
		nonces:  make(map[string]uint64),
		chainID: "0x29ec5",
	}
}

func (n *stubNode) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

func (n *stubNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	result, rpcErr := n.handle(req)
	if rpcErr != "" {
		resp["error"] = map[string]any{"code": -32000, "message": rpcErr}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *stubNode) handle(req rpcRequest) (any, string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	param := func(i int) string {
		if i >= len(req.Params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(req.Params[i], &s)
		return s
	}

	switch req.Method {
	case "eth_chainId":
		return n.chainID, ""
	case "eth_gasPrice":
		return "0x3b9aca00", ""
	case "eth_getBalance":
		return hexutil.EncodeBig(n.native), ""
	case "eth_getTransactionCount":
		return hexutil.EncodeUint64(n.nonces[strings.ToLower(param(0))]), ""
	case "eth_call":
		var arg map[string]any
		_ = json.Unmarshal(req.Params[0], &arg)
		input, _ := arg["input"].(string)
		if input == "" {
			input, _ = arg["data"].(string)
		}
		switch {
		case strings.HasPrefix(input, "0x70a08231"):
			return hexutil.Encode(common.LeftPadBytes(n.tokens.Bytes(), 32)), ""
		case strings.HasPrefix(input, "0x313ce567"):
			return hexutil.Encode(common.LeftPadBytes([]byte{6}, 32)), ""
		}
		return "0x", ""
	case "eth_sendRawTransaction":
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(common.FromHex(param(0))); err != nil {
			return nil, err.Error()
		}
		signer := types.LatestSignerForChainID(tx.ChainId())
		from, err := types.Sender(signer, tx)
		if err != nil {
			return nil, err.Error()
		}
		key := strings.ToLower(from.Hex())
		if tx.Nonce() != n.nonces[key] {
			return nil, "nonce too low"
		}
		n.nonces[key]++
		n.sent = append(n.sent, tx)
		return tx.Hash().Hex(), ""
	case "eth_getTransactionReceipt":
		hash := common.HexToHash(param(0))
		for _, tx := range n.sent {
			if tx.Hash() == hash {
				return map[string]any{
					"transactionHash":   hash.Hex(),
					"blockHash":         crypto.Keccak256Hash(hash.Bytes()).Hex(),
					"blockNumber":       "0x10",
					"transactionIndex":  "0x0",
					"status":            "0x1",
					"gasUsed":           "0x5208",
					"cumulativeGasUsed": "0x5208",
					"logsBloom":         hexutil.Encode(make([]byte, types.BloomByteLength)),
					"logs":              []any{},
					"type":              "0x0",
				}, ""
			}
		}
		return nil, ""
	case "eth_blockNumber":
		return "0x10", ""
	}
	return nil, "method not supported: " + req.Method
}

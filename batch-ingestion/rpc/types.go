package rpc

import (
	"encoding/json"

	"github.com/ava-labs/libevm/common/hexutil"
)

type JSONRPCRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type JSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Block is a block as returned by eth_getBlockByNumber. Only the fields the
// ingestion needs are decoded; Raw keeps the full payload for storage.
type Block struct {
	Number    uint64
	Timestamp uint64
	Raw       json.RawMessage
}

type blockHeader struct {
	Number    *hexutil.Uint64 `json:"number"`
	Timestamp *hexutil.Uint64 `json:"timestamp"`
}

package relay

import (
	"github.com/ethereum/go-ethereum/common"
)

// subscriptionRequest represents the JSON-RPC request for subscribing.
type subscriptionRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  struct {
		Query string `json:"query"`
	} `json:"params"`
}

// --- Structures to parse the WS response ---

// statusEvent represents the flattened intent status attributes in a pushed
// message.
type statusEvent struct {
	IntentID  common.Hash `json:"intent.id"`
	Status    string      `json:"intent.status"`
	UpdatedAt uint64      `json:"intent.updated_at"`
}

// wsResponseStatus is the top-level response structure from the WS
// subscription.
type wsResponseStatus struct {
	JSONRPC     string      `json:"jsonrpc"`
	ID          int         `json:"id"`
	StatusEvent statusEvent `json:"events"`
}

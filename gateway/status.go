// Package gateway submits content-addressed intents to the external relay
// and reports their lifecycle. The gateway never drives state transitions
// itself; the relay is the system of record and the gateway only observes.
package gateway

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/jeju-network/crosschain/intent"
)

// Status is the relay-side lifecycle tag of a submitted intent.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSolving  Status = "solving"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Valid reports whether the status is one the relay protocol defines.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSolving, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status can no longer change. Callers stop
// polling once they see a terminal status.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// SubmissionPayload is the request shape sent to the relay: the locally
// computed intent id, the variant tag and the exact canonical bytes the id
// was hashed from.
type SubmissionPayload struct {
	IntentID     common.Hash   `json:"intentId"`
	Kind         intent.Kind   `json:"kind"`
	Intent       hexutil.Bytes `json:"intent"`
	SubmissionID string        `json:"submissionId"`
}

// SubmissionAck is the relay's answer to a submission.
type SubmissionAck struct {
	IntentID common.Hash `json:"intentId"`
	Status   Status      `json:"status"`
}

// LifecycleRecord is the relay's view of a submitted intent.
type LifecycleRecord struct {
	IntentID        common.Hash   `json:"intentId"`
	Status          Status        `json:"status"`
	Solution        hexutil.Bytes `json:"solution,omitempty"`
	ExecutionTxHash common.Hash   `json:"executionTxHash"`
	UpdatedAt       uint64        `json:"updatedAt"`
}

// StatusEvent is a pushed lifecycle update from the relay's websocket feed.
type StatusEvent struct {
	IntentID  common.Hash `json:"intentId"`
	Status    Status      `json:"status"`
	UpdatedAt uint64      `json:"updatedAt"`
}

// Receipt is what Submit hands back to the caller: the content-addressed
// intent id, the per-submission dedup id and the initial lifecycle status.
type Receipt struct {
	IntentID     common.Hash
	SubmissionID string
	Status       Status
}

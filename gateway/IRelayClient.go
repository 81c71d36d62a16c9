package gateway

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

//go:generate mockgen -source=IRelayClient.go -destination=./mocks/MockIRelayClient.go -package=mocks
type IRelayClient interface {
	SubmitIntent(ctx context.Context, payload SubmissionPayload) (*SubmissionAck, error)
	GetIntentStatus(ctx context.Context, intentID common.Hash) (*LifecycleRecord, error)
	Close()
}

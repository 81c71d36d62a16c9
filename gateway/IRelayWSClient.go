package gateway

import (
	"context"
)

//go:generate mockgen -source=IRelayWSClient.go -destination=./mocks/MockIRelayWSClient.go -package=mocks . IRelayWSClient
type IRelayWSClient interface {
	SubscribeIntentStatus(ctx context.Context) <-chan *StatusEvent
	Unsubscribe(ctx context.Context) error
	Close() error
}

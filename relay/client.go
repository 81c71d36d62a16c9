// Package relay implements the transport clients for the external intent
// relay: a JSON-RPC client for submission and status polling, and a
// websocket client for the pushed status feed. Both satisfy the gateway's
// relay interfaces; the core never talks to the relay directly.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/jeju-network/crosschain/gateway"
)

const (
	submitMethod = "relay_submitIntent"
	statusMethod = "relay_getIntentStatus"
)

// Client talks JSON-RPC to the relay over HTTP(S).
type Client struct {
	client *rpc.Client
	logger log.Logger

	closeOnce sync.Once
}

type clientConfig struct {
	auth rpc.HTTPAuth
}

// ClientOption configures the relay client.
type ClientOption func(*clientConfig)

// WithJWTSecret enables per-request bearer tokens signed with the shared
// secret, the same scheme the engine API uses. Tokens carry only an
// issued-at claim and are minted fresh for every request.
func WithJWTSecret(secret [32]byte) ClientOption {
	return func(cfg *clientConfig) {
		cfg.auth = func(h http.Header) error {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"iat": &jwt.NumericDate{Time: time.Now()},
			})

			s, err := token.SignedString(secret[:])
			if err != nil {
				return fmt.Errorf("failed to create JWT token: %w", err)
			}

			h.Set("Authorization", "Bearer "+s)
			return nil
		}
	}
}

// NewClient dials the relay endpoint.
func NewClient(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var dialOpts []rpc.ClientOption
	if cfg.auth != nil {
		dialOpts = append(dialOpts, rpc.WithHTTPAuth(cfg.auth))
	}

	client, err := rpc.DialOptions(ctx, url, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrRelayUnavailable, err)
	}

	return &Client{
		client: client,
		logger: log.New("module", "relay"),
	}, nil
}

// SubmitIntent forwards a submission payload to the relay.
func (c *Client) SubmitIntent(ctx context.Context, payload gateway.SubmissionPayload) (*gateway.SubmissionAck, error) {
	var ack gateway.SubmissionAck
	if err := c.client.CallContext(ctx, &ack, submitMethod, payload); err != nil {
		return nil, classifyError(err)
	}

	return &ack, nil
}

// GetIntentStatus fetches the lifecycle record of the given intent.
func (c *Client) GetIntentStatus(ctx context.Context, intentID common.Hash) (*gateway.LifecycleRecord, error) {
	var record gateway.LifecycleRecord
	if err := c.client.CallContext(ctx, &record, statusMethod, intentID); err != nil {
		return nil, classifyError(err)
	}

	return &record, nil
}

// Close tears down the underlying RPC client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(c.client.Close)
}

// classifyError sorts relay failures into the two classes callers care
// about: a JSON-RPC error response means the relay saw the request and
// rejected it; anything else means the relay could not be reached.
func classifyError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", gateway.ErrRelayRejected, err)
	}

	return fmt.Errorf("%w: %v", gateway.ErrRelayUnavailable, err)
}

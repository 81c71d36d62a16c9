package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeju-network/crosschain/intent"
)

var (
	// ErrRelayUnavailable wraps transport-level failures talking to the
	// relay. Retryable.
	ErrRelayUnavailable = errors.New("relay unavailable")

	// ErrRelayRejected wraps relay-side rejections of an otherwise delivered
	// intent. Not retryable with the same intent.
	ErrRelayRejected = errors.New("relay rejected intent")

	// ErrNoWSClient is returned by Watch when the gateway was built without
	// a websocket relay client.
	ErrNoWSClient = errors.New("no websocket relay client configured")
)

var (
	submitMeter     = metrics.NewRegisteredMeter("crosschain/gateway/submit", nil)
	submitFailMeter = metrics.NewRegisteredMeter("crosschain/gateway/submit/fail", nil)
	statusMeter     = metrics.NewRegisteredMeter("crosschain/gateway/status", nil)
)

// Gateway hashes intents, submits them through the injected relay client
// and polls their lifecycle. It holds no intent state: once submitted, the
// relay owns the record and local callers keep only the Receipt.
type Gateway struct {
	relay IRelayClient
	ws    IRelayWSClient

	logger log.Logger
	tracer trace.Tracer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithWSClient attaches a websocket relay client enabling Watch.
func WithWSClient(ws IRelayWSClient) Option {
	return func(g *Gateway) {
		g.ws = ws
	}
}

// New creates a gateway around the given relay client.
func New(relay IRelayClient, opts ...Option) *Gateway {
	g := &Gateway{
		relay:  relay,
		logger: log.New("module", "gateway"),
		tracer: otel.Tracer("github.com/jeju-network/crosschain/gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Submit canonical-encodes the intent, computes its id locally and forwards
// both to the relay. The local id is authoritative: a relay ack carrying a
// different id is logged and ignored, because content addressing must not
// depend on what the other side claims.
func (g *Gateway) Submit(ctx context.Context, i intent.Intent) (*Receipt, error) {
	enc, err := intent.CanonicalEncoding(i)
	if err != nil {
		return nil, err
	}

	intentID := crypto.Keccak256Hash(enc)
	submissionID := uuid.NewString()

	ctx, span := g.tracer.Start(ctx, "gateway.Submit", trace.WithAttributes(
		attribute.String("intent.id", intentID.Hex()),
		attribute.String("intent.kind", string(i.Kind())),
	))
	defer span.End()

	ack, err := g.relay.SubmitIntent(ctx, SubmissionPayload{
		IntentID:     intentID,
		Kind:         i.Kind(),
		Intent:       enc,
		SubmissionID: submissionID,
	})
	if err != nil {
		submitFailMeter.Mark(1)
		span.RecordError(err)

		return nil, classifyRelayError(err)
	}

	status := StatusPending
	if ack.Status.Valid() {
		status = ack.Status
	}

	if ack.IntentID != (common.Hash{}) && ack.IntentID != intentID {
		g.logger.Warn("Relay acked a different intent id", "local", intentID, "relay", ack.IntentID)
	}

	submitMeter.Mark(1)

	g.logger.Debug("Submitted intent", "id", intentID, "kind", i.Kind(), "submission", submissionID, "status", status)

	return &Receipt{
		IntentID:     intentID,
		SubmissionID: submissionID,
		Status:       status,
	}, nil
}

// Status polls the relay for the lifecycle record of an intent.
func (g *Gateway) Status(ctx context.Context, intentID common.Hash) (*LifecycleRecord, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Status", trace.WithAttributes(
		attribute.String("intent.id", intentID.Hex()),
	))
	defer span.End()

	record, err := g.relay.GetIntentStatus(ctx, intentID)
	if err != nil {
		span.RecordError(err)
		return nil, classifyRelayError(err)
	}

	if !record.Status.Valid() {
		return nil, fmt.Errorf("relay returned unknown status %q for intent %s", record.Status, intentID)
	}

	statusMeter.Mark(1)

	return record, nil
}

// Watch returns the relay's pushed status event feed. Requires a websocket
// client; polling Status stays available either way.
func (g *Gateway) Watch(ctx context.Context) (<-chan *StatusEvent, error) {
	if g.ws == nil {
		return nil, ErrNoWSClient
	}

	return g.ws.SubscribeIntentStatus(ctx), nil
}

// Close shuts down the underlying relay clients.
func (g *Gateway) Close() {
	g.relay.Close()

	if g.ws != nil {
		if err := g.ws.Close(); err != nil {
			g.logger.Warn("Failed to close websocket relay client", "err", err)
		}
	}
}

func classifyRelayError(err error) error {
	if errors.Is(err, ErrRelayRejected) || errors.Is(err, ErrRelayUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
}

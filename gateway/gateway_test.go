package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/jeju-network/crosschain/intent"
)

type fakeRelay struct {
	submitFn func(ctx context.Context, payload SubmissionPayload) (*SubmissionAck, error)
	statusFn func(ctx context.Context, intentID common.Hash) (*LifecycleRecord, error)

	lastPayload SubmissionPayload
	closed      bool
}

func (f *fakeRelay) SubmitIntent(ctx context.Context, payload SubmissionPayload) (*SubmissionAck, error) {
	f.lastPayload = payload

	if f.submitFn != nil {
		return f.submitFn(ctx, payload)
	}

	return &SubmissionAck{IntentID: payload.IntentID, Status: StatusPending}, nil
}

func (f *fakeRelay) GetIntentStatus(ctx context.Context, intentID common.Hash) (*LifecycleRecord, error) {
	if f.statusFn != nil {
		return f.statusFn(ctx, intentID)
	}

	return &LifecycleRecord{IntentID: intentID, Status: StatusPending}, nil
}

func (f *fakeRelay) Close() { f.closed = true }

func testAuthIntent() *intent.CrossChainAuthIntent {
	return &intent.CrossChainAuthIntent{
		IdentityID:     crypto.Keccak256Hash([]byte("identity:alice")),
		SourceChain:    1337,
		TargetChain:    8453,
		TargetContract: common.HexToAddress("0xbb"),
		TargetFunction: [4]byte{0xa9, 0x05, 0x9c, 0xbb},
		CallData:       []byte{0x01},
		Value:          uint256.NewInt(1),
		Deadline:       1700003600,
		Signature:      []byte{},
	}
}

func TestSubmitComputesLocalID(t *testing.T) {
	relay := &fakeRelay{}
	g := New(relay)

	i := testAuthIntent()

	receipt, err := g.Submit(context.Background(), i)
	require.NoError(t, err)

	want, err := intent.Hash(i)
	require.NoError(t, err)
	require.Equal(t, want, receipt.IntentID)
	require.Equal(t, StatusPending, receipt.Status)

	// The relay got exactly the canonical bytes the id was hashed from.
	enc, err := intent.CanonicalEncoding(i)
	require.NoError(t, err)
	require.Equal(t, enc, []byte(relay.lastPayload.Intent))
	require.Equal(t, want, relay.lastPayload.IntentID)
	require.Equal(t, intent.KindCrossChainAuth, relay.lastPayload.Kind)

	_, err = uuid.Parse(receipt.SubmissionID)
	require.NoError(t, err)
}

// Resubmitting the same intent yields the same intent id but a fresh
// submission id; dedup at the relay rides on the latter.
func TestSubmitSubmissionIDsUnique(t *testing.T) {
	g := New(&fakeRelay{})

	i := testAuthIntent()

	first, err := g.Submit(context.Background(), i)
	require.NoError(t, err)

	second, err := g.Submit(context.Background(), i)
	require.NoError(t, err)

	require.Equal(t, first.IntentID, second.IntentID)
	require.NotEqual(t, first.SubmissionID, second.SubmissionID)
}

func TestSubmitKeepsLocalIDOnMismatch(t *testing.T) {
	relay := &fakeRelay{
		submitFn: func(_ context.Context, payload SubmissionPayload) (*SubmissionAck, error) {
			return &SubmissionAck{IntentID: crypto.Keccak256Hash([]byte("other")), Status: StatusPending}, nil
		},
	}
	g := New(relay)

	i := testAuthIntent()

	receipt, err := g.Submit(context.Background(), i)
	require.NoError(t, err)

	want, err := intent.Hash(i)
	require.NoError(t, err)
	require.Equal(t, want, receipt.IntentID)
}

func TestSubmitAckStatus(t *testing.T) {
	relay := &fakeRelay{
		submitFn: func(_ context.Context, payload SubmissionPayload) (*SubmissionAck, error) {
			return &SubmissionAck{IntentID: payload.IntentID, Status: StatusSolving}, nil
		},
	}

	receipt, err := New(relay).Submit(context.Background(), testAuthIntent())
	require.NoError(t, err)
	require.Equal(t, StatusSolving, receipt.Status)

	// Unknown ack statuses fall back to pending instead of leaking through.
	relay.submitFn = func(_ context.Context, payload SubmissionPayload) (*SubmissionAck, error) {
		return &SubmissionAck{IntentID: payload.IntentID, Status: Status("weird")}, nil
	}

	receipt, err = New(relay).Submit(context.Background(), testAuthIntent())
	require.NoError(t, err)
	require.Equal(t, StatusPending, receipt.Status)
}

func TestSubmitErrorClassification(t *testing.T) {
	transport := &fakeRelay{
		submitFn: func(context.Context, SubmissionPayload) (*SubmissionAck, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := New(transport).Submit(context.Background(), testAuthIntent())
	require.ErrorIs(t, err, ErrRelayUnavailable)
	require.NotErrorIs(t, err, ErrRelayRejected)

	rejected := &fakeRelay{
		submitFn: func(context.Context, SubmissionPayload) (*SubmissionAck, error) {
			return nil, fmt.Errorf("%w: deadline in the past", ErrRelayRejected)
		},
	}

	_, err = New(rejected).Submit(context.Background(), testAuthIntent())
	require.ErrorIs(t, err, ErrRelayRejected)
	require.NotErrorIs(t, err, ErrRelayUnavailable)
}

func TestStatus(t *testing.T) {
	id := crypto.Keccak256Hash([]byte("some intent"))

	relay := &fakeRelay{
		statusFn: func(_ context.Context, intentID common.Hash) (*LifecycleRecord, error) {
			return &LifecycleRecord{
				IntentID:        intentID,
				Status:          StatusExecuted,
				ExecutionTxHash: crypto.Keccak256Hash([]byte("tx")),
				UpdatedAt:       1700000000,
			}, nil
		},
	}

	record, err := New(relay).Status(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, record.IntentID)
	require.Equal(t, StatusExecuted, record.Status)
	require.True(t, record.Status.Terminal())
}

func TestStatusErrors(t *testing.T) {
	unavailable := &fakeRelay{
		statusFn: func(context.Context, common.Hash) (*LifecycleRecord, error) {
			return nil, errors.New("i/o timeout")
		},
	}

	_, err := New(unavailable).Status(context.Background(), common.Hash{1})
	require.ErrorIs(t, err, ErrRelayUnavailable)

	bogus := &fakeRelay{
		statusFn: func(_ context.Context, intentID common.Hash) (*LifecycleRecord, error) {
			return &LifecycleRecord{IntentID: intentID, Status: Status("limbo")}, nil
		},
	}

	_, err = New(bogus).Status(context.Background(), common.Hash{1})
	require.ErrorContains(t, err, "unknown status")
}

type fakeWSRelay struct {
	ch           chan *StatusEvent
	unsubscribed bool
	closed       bool
}

func (f *fakeWSRelay) SubscribeIntentStatus(context.Context) <-chan *StatusEvent { return f.ch }

func (f *fakeWSRelay) Unsubscribe(context.Context) error {
	f.unsubscribed = true
	return nil
}

func (f *fakeWSRelay) Close() error {
	f.closed = true
	return nil
}

func TestWatch(t *testing.T) {
	g := New(&fakeRelay{})

	_, err := g.Watch(context.Background())
	require.ErrorIs(t, err, ErrNoWSClient)

	ws := &fakeWSRelay{ch: make(chan *StatusEvent, 1)}
	g = New(&fakeRelay{}, WithWSClient(ws))

	events, err := g.Watch(context.Background())
	require.NoError(t, err)

	want := &StatusEvent{IntentID: common.Hash{1}, Status: StatusSolving, UpdatedAt: 1700000000}
	ws.ch <- want
	require.Equal(t, want, <-events)
}

func TestClose(t *testing.T) {
	relay := &fakeRelay{}
	ws := &fakeWSRelay{}

	New(relay, WithWSClient(ws)).Close()
	require.True(t, relay.closed)
	require.True(t, ws.closed)
}

func TestStatusTags(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusSolving, StatusExecuted, StatusFailed} {
		require.True(t, s.Valid())
	}
	require.False(t, Status("unknown").Valid())

	require.False(t, StatusPending.Terminal())
	require.False(t, StatusSolving.Terminal())
	require.True(t, StatusExecuted.Terminal())
	require.True(t, StatusFailed.Terminal())
}

package intent

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/jeju-network/crosschain/identity"
)

// ErrSourceChainNotDeployed is returned when a sync intent is requested for
// a source chain whose replica is missing or not yet deployed. State can
// only be synced from a chain that actually holds it.
var ErrSourceChainNotDeployed = errors.New("source chain not deployed for identity")

// proofDomain versions the sync proof preimage layout.
const proofDomain = "jeju.crosschain.syncproof.v1"

// DefaultValidity is the intent validity window used when the factory is
// not configured otherwise.
const DefaultValidity = time.Hour

// Signer produces an owner signature over an intent hash. Implementations
// may be remote (KMS, hardware), so calls take a context.
type Signer interface {
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// Factory builds intents from the identity store's current view. It holds
// no mutable state of its own and is safe for concurrent use.
type Factory struct {
	store       *identity.Store
	homeChainID uint64
	validity    time.Duration
	signer      Signer

	logger  log.Logger
	nowFunc func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

// WithValidity overrides the intent validity window that determines
// Deadline.
func WithValidity(d time.Duration) Option {
	return func(f *Factory) {
		f.validity = d
	}
}

// WithSigner wires an owner signer into auth intent building. Without one,
// auth intents are built unsigned.
func WithSigner(s Signer) Option {
	return func(f *Factory) {
		f.signer = s
	}
}

// NewFactory creates a factory reading from the given store. The store's
// home chain is the source chain of every auth intent.
func NewFactory(store *identity.Store, opts ...Option) *Factory {
	f := &Factory{
		store:       store,
		homeChainID: store.HomeChainID(),
		validity:    DefaultValidity,
		logger:      log.New("module", "intent"),
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// SyncProof computes the proof hash binding a sync intent to the source
// replica snapshot it was built from: keccak256 over a versioned domain tag,
// the identity id, the source chain id, the owner and the source nonce.
// The layout is fixed; changing it requires a new domain version.
func SyncProof(identityID common.Hash, sourceChain uint64, owner common.Address, nonce uint64) common.Hash {
	preimage := make([]byte, 0, len(proofDomain)+common.HashLength+8+common.AddressLength+8)
	preimage = append(preimage, proofDomain...)
	preimage = append(preimage, identityID.Bytes()...)
	preimage = binary.BigEndian.AppendUint64(preimage, sourceChain)
	preimage = append(preimage, owner.Bytes()...)
	preimage = binary.BigEndian.AppendUint64(preimage, nonce)

	return crypto.Keccak256Hash(preimage)
}

// BuildIdentitySyncIntent builds an intent propagating identity state from
// sourceChain to targetChain. The source replica must exist and be
// deployed; syncing from a chain that has no account yet would anchor the
// proof to state that does not exist.
func (f *Factory) BuildIdentitySyncIntent(identityID common.Hash, sourceChain, targetChain uint64, newState SyncState) (*IdentitySyncIntent, error) {
	state, err := f.store.Get(identityID)
	if err != nil {
		return nil, err
	}

	replica, ok := state.ChainStates[sourceChain]
	if !ok || !replica.Deployed {
		return nil, ErrSourceChainNotDeployed
	}

	if newState.Empty() {
		f.logger.Debug("Building sync intent with empty state payload", "identity", identityID, "source", sourceChain)
	}

	return &IdentitySyncIntent{
		SourceChain: sourceChain,
		TargetChain: targetChain,
		IdentityID:  identityID,
		NewState:    newState,
		Proof:       SyncProof(identityID, sourceChain, state.Owner, replica.Nonce),
		Deadline:    f.deadline(),
	}, nil
}

// BuildCrossChainAuthIntent builds an intent executing a call as the
// identity's account on targetChain, sourced from the home chain. When a
// signer is configured the signature covers the hash of the unsigned
// intent; otherwise the intent goes out unsigned and signing is the
// caller's problem.
func (f *Factory) BuildCrossChainAuthIntent(ctx context.Context, identityID common.Hash, targetChain uint64, targetContract common.Address, selector [4]byte, callData []byte, value *uint256.Int) (*CrossChainAuthIntent, error) {
	if value == nil {
		value = uint256.NewInt(0)
	}

	if callData == nil {
		callData = []byte{}
	}

	auth := &CrossChainAuthIntent{
		IdentityID:     identityID,
		SourceChain:    f.homeChainID,
		TargetChain:    targetChain,
		TargetContract: targetContract,
		TargetFunction: selector,
		CallData:       callData,
		Value:          value,
		Deadline:       f.deadline(),
		Signature:      []byte{},
	}

	if f.signer == nil {
		f.logger.Warn("Building unsigned auth intent", "identity", identityID, "target", targetChain)
		return auth, nil
	}

	unsigned, err := Hash(auth)
	if err != nil {
		return nil, err
	}

	sig, err := f.signer.SignHash(ctx, unsigned)
	if err != nil {
		return nil, err
	}

	auth.Signature = sig

	return auth, nil
}

func (f *Factory) deadline() uint64 {
	return uint64(f.nowFunc().Add(f.validity).Unix())
}

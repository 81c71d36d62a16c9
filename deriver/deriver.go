// Package deriver predicts the address an identity's smart account will
// occupy on a target chain before it is deployed there. The derivation
// mirrors a create2-style factory: a domain-separated salt over
// (identityID, owner, chainID) combined with the factory address and the
// init-code hash. Prediction is pure and reproducible; it is NOT verified
// against any chain here.
package deriver

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jeju-network/crosschain/chains"
)

// SaltDomain is the domain-separation tag of the salt layout. Any change to
// the layout (field order, widths, tag) is a breaking change and requires a
// version bump in the tag.
const SaltDomain = "jeju.crosschain.account.v1"

// initCodeDomain feeds the placeholder init-code hash. Predicted addresses
// only match a live deployer once the real factory bytecode hash is
// installed via WithInitCodeHash; the placeholder exists so derivation is
// fully specified and testable without one.
const initCodeDomain = "jeju.smart-account.initcode.v1"

// ErrNoAccountFactory is returned when the target chain is registered but
// carries no account factory address to derive against.
var ErrNoAccountFactory = errors.New("chain has no account factory configured")

// PlaceholderInitCodeHash returns the documented stand-in init-code hash used
// when a chain has no real factory bytecode hash installed.
func PlaceholderInitCodeHash() common.Hash {
	return crypto.Keccak256Hash([]byte(initCodeDomain))
}

// Deriver computes predicted smart account addresses. It is immutable after
// construction and safe for unlimited concurrent use.
type Deriver struct {
	registry      *chains.Registry
	initCodeHash  map[uint64]common.Hash
	defaultInitCH common.Hash
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithInitCodeHash installs the real factory init-code hash for a chain.
// This is the integration point with the on-chain deployer: equivalence of
// predicted and deployed addresses must be verified against the live factory
// before predicted addresses are used for anything fund-bearing.
func WithInitCodeHash(chainID uint64, hash common.Hash) Option {
	return func(d *Deriver) {
		d.initCodeHash[chainID] = hash
	}
}

// New creates a Deriver reading factory addresses from the given registry.
func New(registry *chains.Registry, opts ...Option) *Deriver {
	d := &Deriver{
		registry:      registry,
		initCodeHash:  make(map[uint64]common.Hash),
		defaultInitCH: PlaceholderInitCodeHash(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Salt derives the deterministic create2 salt for (identityID, owner,
// chainID). Layout: keccak256(tag || identityID(32) || owner(20) ||
// chainID(8, big-endian)).
func (d *Deriver) Salt(identityID common.Hash, owner common.Address, chainID uint64) common.Hash {
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], chainID)

	return crypto.Keccak256Hash(
		[]byte(SaltDomain),
		identityID.Bytes(),
		owner.Bytes(),
		chainBuf[:],
	)
}

// InitCodeHash returns the init-code hash used for the given chain: the
// installed real hash if one was configured, the placeholder otherwise.
func (d *Deriver) InitCodeHash(chainID uint64) common.Hash {
	if hash, ok := d.initCodeHash[chainID]; ok {
		return hash
	}

	return d.defaultInitCH
}

// Predict computes the address the identity's account will occupy on the
// target chain. Same inputs always yield the same output; no network or
// state access. Fails with chains.ErrChainNotSupported for unregistered
// chains and ErrNoAccountFactory when the descriptor has no factory.
func (d *Deriver) Predict(identityID common.Hash, owner common.Address, chainID uint64) (common.Address, error) {
	desc, err := d.registry.Get(chainID)
	if err != nil {
		return common.Address{}, err
	}
	if desc.AccountFactory == (common.Address{}) {
		return common.Address{}, ErrNoAccountFactory
	}

	salt := d.Salt(identityID, owner, chainID)

	// keccak256(0xff || factory || salt || initCodeHash)[12:], the standard
	// create2 construction.
	return crypto.CreateAddress2(desc.AccountFactory, salt, d.InitCodeHash(chainID).Bytes()), nil
}

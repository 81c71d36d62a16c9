// Package identity holds the locally-authoritative view of where each
// cross-chain identity lives: one replica record per chain, seeded at
// creation and reconciled only through explicit sync operations. The view is
// deliberately allowed to go stale; nothing here assumes consistency with
// any chain.
package identity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainIdentityState is the per-chain replica record of one identity.
type ChainIdentityState struct {
	ChainID      uint64
	SmartAccount common.Address
	Nonce        uint64
	Deployed     bool
	LastSync     time.Time // zero value means never synced
}

// CrossChainIdentityState is the full per-identity record: the owner key and
// one replica per chain the identity is (or will be) deployed on. Instances
// handed out by the store are copies; mutation happens only through store
// methods.
type CrossChainIdentityState struct {
	IdentityID  common.Hash
	Owner       common.Address
	ChainStates map[uint64]ChainIdentityState
}

// Copy returns a deep copy of the state.
func (s *CrossChainIdentityState) Copy() *CrossChainIdentityState {
	cpy := &CrossChainIdentityState{
		IdentityID:  s.IdentityID,
		Owner:       s.Owner,
		ChainStates: make(map[uint64]ChainIdentityState, len(s.ChainStates)),
	}
	for id, replica := range s.ChainStates {
		cpy.ChainStates[id] = replica
	}

	return cpy
}

// wire shapes for RLP (maps and time.Time need flattening; chain lists are
// sorted so snapshots are canonical)
type encChainState struct {
	ChainID      uint64
	SmartAccount common.Address
	Nonce        uint64
	Deployed     bool
	LastSync     uint64 // unix seconds, 0 = never synced
}

type encIdentityState struct {
	IdentityID common.Hash
	Owner      common.Address
	Chains     []encChainState
}

type encSnapshot struct {
	Version    uint64
	Identities []encIdentityState
}

// Package chains tracks the per-chain configuration the coordinator needs:
// chain ids, RPC endpoints and the addresses of the deployed system
// contracts (identity registry, account factory, intent router, entry point).
package chains

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrChainNotSupported = errors.New("chain not supported")
	ErrZeroChainID       = errors.New("chain id must be non-zero")
)

// ChainDescriptor describes one supported chain. Descriptors are immutable
// value types; re-registering a chain id replaces the whole descriptor.
type ChainDescriptor struct {
	ChainID          uint64
	Name             string
	RPCURL           string
	IdentityRegistry common.Address
	AccountFactory   common.Address
	IntentRouter     common.Address
	EntryPoint       common.Address
}

// Registry is the chain descriptor table. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	chains map[uint64]ChainDescriptor
}

// NewRegistry creates an empty chain registry.
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[uint64]ChainDescriptor),
	}
}

// Register inserts or replaces the descriptor keyed by its chain id. The only
// validation is a non-zero chain id.
func (r *Registry) Register(desc ChainDescriptor) error {
	if desc.ChainID == 0 {
		return ErrZeroChainID
	}

	r.mu.Lock()
	r.chains[desc.ChainID] = desc
	r.mu.Unlock()

	return nil
}

// Get returns the descriptor for the given chain id.
func (r *Registry) Get(chainID uint64) (ChainDescriptor, error) {
	r.mu.RLock()
	desc, ok := r.chains[chainID]
	r.mu.RUnlock()

	if !ok {
		return ChainDescriptor{}, ErrChainNotSupported
	}

	return desc, nil
}

// Has reports whether the chain id is registered.
func (r *Registry) Has(chainID uint64) bool {
	r.mu.RLock()
	_, ok := r.chains[chainID]
	r.mu.RUnlock()

	return ok
}

// List returns all registered descriptors. Iteration order is undefined and
// callers must not depend on it.
func (r *Registry) List() []ChainDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]ChainDescriptor, 0, len(r.chains))
	for _, desc := range r.chains {
		descs = append(descs, desc)
	}

	return descs
}

// ChainIDs returns the registered chain ids, order undefined.
func (r *Registry) ChainIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}

	return ids
}

// Len returns the number of registered chains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.chains)
}

package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jeju-network/crosschain/deriver"
)

var (
	// ErrMissingIdentityID is returned when an operation is attempted with a
	// zero identity id.
	ErrMissingIdentityID = errors.New("missing identity id")

	// ErrIdentityExists is returned by Create when the identity id is
	// already registered. Callers must treat creation as a one-time
	// operation, not an upsert.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrIdentityNotFound is returned when no identity is registered under
	// the given id.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrChainNotRegistered is returned when the identity exists but has no
	// replica record on the requested chain.
	ErrChainNotRegistered = errors.New("chain not registered for identity")
)

var (
	identityCountGauge  = metrics.NewRegisteredGauge("crosschain/identity/count", nil)
	identityCreateMeter = metrics.NewRegisteredMeter("crosschain/identity/create", nil)
	identitySyncMeter   = metrics.NewRegisteredMeter("crosschain/identity/sync", nil)
)

// Store is the in-memory registry of cross-chain identity state. It is safe
// for concurrent use: a read-write mutex guards the identity map itself and
// each identity carries its own lock, so syncs against different identities
// never contend while two writers of the same identity are serialized.
type Store struct {
	deriver     *deriver.Deriver
	homeChainID uint64

	mu         sync.RWMutex // guards identities map shape
	identities map[common.Hash]*identityEntry

	logger  log.Logger
	nowFunc func() time.Time
}

type identityEntry struct {
	mu    sync.RWMutex // serializes mutation of this identity
	state *CrossChainIdentityState
}

// NewStore creates an empty store. The home chain is where identities are
// born; its replica is the only one seeded as deployed.
func NewStore(d *deriver.Deriver, homeChainID uint64) *Store {
	return &Store{
		deriver:     d,
		homeChainID: homeChainID,
		identities:  make(map[common.Hash]*identityEntry),
		logger:      log.New("module", "identity"),
		nowFunc:     time.Now,
	}
}

// HomeChainID returns the chain id identities are created on.
func (s *Store) HomeChainID() uint64 {
	return s.homeChainID
}

// Create registers a new identity. The home chain replica is recorded as
// deployed at the given account with nonce zero and a fresh sync timestamp;
// every target chain gets a predicted (undeployed, never-synced) replica.
// Duplicate and home-equal targets are dropped. Address prediction for every
// target must succeed before anything is stored, so a failed create leaves
// no partial state behind.
func (s *Store) Create(identityID common.Hash, owner common.Address, homeAccount common.Address, targetChains []uint64) (*CrossChainIdentityState, error) {
	if identityID == (common.Hash{}) {
		return nil, ErrMissingIdentityID
	}

	state := &CrossChainIdentityState{
		IdentityID:  identityID,
		Owner:       owner,
		ChainStates: make(map[uint64]ChainIdentityState, len(targetChains)+1),
	}
	state.ChainStates[s.homeChainID] = ChainIdentityState{
		ChainID:      s.homeChainID,
		SmartAccount: homeAccount,
		Nonce:        0,
		Deployed:     true,
		LastSync:     s.nowFunc(),
	}

	seen := mapset.NewSet[uint64](s.homeChainID)
	for _, chainID := range targetChains {
		if !seen.Add(chainID) {
			continue
		}

		predicted, err := s.deriver.Predict(identityID, owner, chainID)
		if err != nil {
			return nil, err
		}

		state.ChainStates[chainID] = ChainIdentityState{
			ChainID:      chainID,
			SmartAccount: predicted,
			Nonce:        0,
			Deployed:     false,
		}
	}

	s.mu.Lock()
	if _, ok := s.identities[identityID]; ok {
		s.mu.Unlock()
		return nil, ErrIdentityExists
	}

	s.identities[identityID] = &identityEntry{state: state}
	count := len(s.identities)
	s.mu.Unlock()

	identityCountGauge.Update(int64(count))
	identityCreateMeter.Mark(1)

	s.logger.Info("Created identity", "id", identityID, "owner", owner, "chains", len(state.ChainStates))

	return state.Copy(), nil
}

// Get returns a copy of the identity state.
func (s *Store) Get(identityID common.Hash) (*CrossChainIdentityState, error) {
	entry, err := s.entry(identityID)
	if err != nil {
		return nil, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	return entry.state.Copy(), nil
}

// Sync stamps the replica of the identity on the given chain with the
// current time and returns the updated replica record. It is the only
// operation that advances LastSync without changing anything else.
func (s *Store) Sync(identityID common.Hash, chainID uint64) (ChainIdentityState, error) {
	entry, err := s.entry(identityID)
	if err != nil {
		return ChainIdentityState{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	replica, ok := entry.state.ChainStates[chainID]
	if !ok {
		return ChainIdentityState{}, ErrChainNotRegistered
	}

	replica.LastSync = s.nowFunc()
	entry.state.ChainStates[chainID] = replica

	identitySyncMeter.Mark(1)

	return replica, nil
}

// MarkDeployed records an observed deployment of the identity's account on
// the given chain, along with the account nonce seen at confirmation time.
// The observation doubles as a sync, so LastSync advances too. Re-marking an
// already deployed replica just refreshes the nonce and timestamp.
func (s *Store) MarkDeployed(identityID common.Hash, chainID uint64, nonce uint64) (ChainIdentityState, error) {
	entry, err := s.entry(identityID)
	if err != nil {
		return ChainIdentityState{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	replica, ok := entry.state.ChainStates[chainID]
	if !ok {
		return ChainIdentityState{}, ErrChainNotRegistered
	}

	replica.Deployed = true
	replica.Nonce = nonce
	replica.LastSync = s.nowFunc()
	entry.state.ChainStates[chainID] = replica

	s.logger.Info("Marked identity deployed", "id", identityID, "chain", chainID, "nonce", nonce)

	return replica, nil
}

// SetNonce overwrites the recorded nonce of the replica on the given chain.
// LastSync is left alone; only Sync and MarkDeployed move it.
func (s *Store) SetNonce(identityID common.Hash, chainID uint64, nonce uint64) (ChainIdentityState, error) {
	entry, err := s.entry(identityID)
	if err != nil {
		return ChainIdentityState{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	replica, ok := entry.state.ChainStates[chainID]
	if !ok {
		return ChainIdentityState{}, ErrChainNotRegistered
	}

	replica.Nonce = nonce
	entry.state.ChainStates[chainID] = replica

	return replica, nil
}

// Identities returns the ids of every registered identity, in no particular
// order.
func (s *Store) Identities() []common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]common.Hash, 0, len(s.identities))
	for id := range s.identities {
		ids = append(ids, id)
	}

	return ids
}

// Len returns the number of registered identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.identities)
}

func (s *Store) entry(identityID common.Hash) (*identityEntry, error) {
	if identityID == (common.Hash{}) {
		return nil, ErrMissingIdentityID
	}

	s.mu.RLock()
	entry, ok := s.identities[identityID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrIdentityNotFound
	}

	return entry, nil
}

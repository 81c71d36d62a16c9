package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/jeju-network/crosschain/identity"
)

const (
	maxConcurrencyLimit = 5
)

// ErrNoCode is returned when deployment confirmation finds no contract code
// at the predicted address. Not fatal; the account just is not deployed
// yet.
var ErrNoCode = errors.New("no contract code at predicted address")

// ConfirmDeployment probes the chain for contract code at the replica's
// predicted address and, when present, records the deployment and the
// observed account nonce in the store. Local state never flips to deployed
// without this explicit on-chain observation.
func (c *Coordinator) ConfirmDeployment(ctx context.Context, identityID common.Hash, chainID uint64) (identity.ChainIdentityState, error) {
	replica, err := c.replica(identityID, chainID)
	if err != nil {
		return identity.ChainIdentityState{}, err
	}

	client, err := c.chainClient(ctx, chainID)
	if err != nil {
		return identity.ChainIdentityState{}, err
	}

	code, err := client.CodeAt(ctx, replica.SmartAccount, nil)
	if err != nil {
		return identity.ChainIdentityState{}, fmt.Errorf("failed to read code on chain %d: %w", chainID, err)
	}

	if len(code) == 0 {
		return identity.ChainIdentityState{}, fmt.Errorf("%w: chain %d account %s", ErrNoCode, chainID, replica.SmartAccount)
	}

	nonce, err := client.NonceAt(ctx, replica.SmartAccount, nil)
	if err != nil {
		return identity.ChainIdentityState{}, fmt.Errorf("failed to read nonce on chain %d: %w", chainID, err)
	}

	updated, err := c.store.MarkDeployed(identityID, chainID, nonce)
	if err != nil {
		return identity.ChainIdentityState{}, err
	}

	c.logger.Info("Confirmed deployment", "identity", identityID, "chain", chainID, "account", replica.SmartAccount, "nonce", nonce)

	return updated, nil
}

// ConfirmDeployments probes every undeployed replica of the identity
// concurrently and returns the chain ids that were confirmed. Chains
// without code yet are skipped silently; any other failure aborts the
// sweep.
func (c *Coordinator) ConfirmDeployments(ctx context.Context, identityID common.Hash) ([]uint64, error) {
	state, err := c.store.Get(identityID)
	if err != nil {
		return nil, err
	}

	var (
		confirmedMu sync.Mutex
		confirmed   = make([]uint64, 0, len(state.ChainStates))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrencyLimit)

	for chainID, replica := range state.ChainStates {
		if replica.Deployed {
			continue
		}

		chainID := chainID
		g.Go(func() error {
			if _, err := c.ConfirmDeployment(gctx, identityID, chainID); err != nil {
				if errors.Is(err, ErrNoCode) {
					return nil
				}

				return err
			}

			confirmedMu.Lock()
			confirmed = append(confirmed, chainID)
			confirmedMu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i] < confirmed[j] })

	return confirmed, nil
}

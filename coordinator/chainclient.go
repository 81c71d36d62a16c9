package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jeju-network/crosschain/chains"
	"github.com/jeju-network/crosschain/identity"
	"github.com/jeju-network/crosschain/intent"
)

// ErrNoIdentityRegistry is returned when an owner check is attempted on a
// chain whose descriptor carries no identity registry address.
var ErrNoIdentityRegistry = errors.New("no identity registry on chain")

// ChainDialer produces a chain client for a descriptor. The default dials
// the descriptor's RPC endpoint; tests substitute fakes.
type ChainDialer func(ctx context.Context, desc chains.ChainDescriptor) (IChainClient, error)

// DialChain connects an ethclient to the chain's RPC endpoint.
func DialChain(ctx context.Context, desc chains.ChainDescriptor) (IChainClient, error) {
	client, err := ethclient.DialContext(ctx, desc.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d at %s: %w", desc.ChainID, desc.RPCURL, err)
	}

	return client, nil
}

// identityRegistryABI covers the single registry read the coordinator
// performs.
var identityRegistryABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(`[{"inputs":[{"name":"identityId","type":"bytes32"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`))
	if err != nil {
		panic(err)
	}

	return parsed
}()

// AccountBalance reads the native balance of the identity's account on the
// given chain.
func (c *Coordinator) AccountBalance(ctx context.Context, identityID common.Hash, chainID uint64) (*big.Int, error) {
	replica, err := c.replica(identityID, chainID)
	if err != nil {
		return nil, err
	}

	client, err := c.chainClient(ctx, chainID)
	if err != nil {
		return nil, err
	}

	return client.BalanceAt(ctx, replica.SmartAccount, nil)
}

// VerifyOwner checks the on-chain identity registry's owner record against
// the locally stored owner. A false result means the local view and the
// chain disagree; deciding which one is wrong is up to the caller.
func (c *Coordinator) VerifyOwner(ctx context.Context, identityID common.Hash, chainID uint64) (bool, error) {
	state, err := c.store.Get(identityID)
	if err != nil {
		return false, err
	}

	desc, err := c.registry.Get(chainID)
	if err != nil {
		return false, err
	}

	if desc.IdentityRegistry == (common.Address{}) {
		return false, fmt.Errorf("%w: chain %d", ErrNoIdentityRegistry, chainID)
	}

	data, err := identityRegistryABI.Pack("ownerOf", [32]byte(identityID))
	if err != nil {
		return false, err
	}

	client, err := c.chainClient(ctx, chainID)
	if err != nil {
		return false, err
	}

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &desc.IdentityRegistry, Data: data}, nil)
	if err != nil {
		return false, err
	}

	unpacked, err := identityRegistryABI.Unpack("ownerOf", out)
	if err != nil {
		return false, err
	}

	owner, ok := unpacked[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("unexpected ownerOf result type %T", unpacked[0])
	}

	return owner == state.Owner, nil
}

// EstimateIntentGas asks the target chain for a gas estimate of the call an
// auth intent describes, executed from the identity's account there.
func (c *Coordinator) EstimateIntentGas(ctx context.Context, auth *intent.CrossChainAuthIntent) (uint64, error) {
	replica, err := c.replica(auth.IdentityID, auth.TargetChain)
	if err != nil {
		return 0, err
	}

	value := new(big.Int)
	if auth.Value != nil {
		value = auth.Value.ToBig()
	}

	client, err := c.chainClient(ctx, auth.TargetChain)
	if err != nil {
		return 0, err
	}

	return client.EstimateGas(ctx, ethereum.CallMsg{
		From:  replica.SmartAccount,
		To:    &auth.TargetContract,
		Value: value,
		Data:  append(auth.TargetFunction[:], auth.CallData...),
	})
}

// replica fetches one chain replica of an identity from the store.
func (c *Coordinator) replica(identityID common.Hash, chainID uint64) (identity.ChainIdentityState, error) {
	state, err := c.store.Get(identityID)
	if err != nil {
		return identity.ChainIdentityState{}, err
	}

	replica, ok := state.ChainStates[chainID]
	if !ok {
		return identity.ChainIdentityState{}, identity.ErrChainNotRegistered
	}

	return replica, nil
}

// Package coordinator assembles the cross-chain subsystems behind one
// explicitly wired object: chain registry, address deriver, identity store,
// intent factory and relay gateway. Everything is dependency-injected at
// construction; there is no ambient singleton to reach for.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/jeju-network/crosschain/chains"
	"github.com/jeju-network/crosschain/deriver"
	"github.com/jeju-network/crosschain/gateway"
	"github.com/jeju-network/crosschain/identity"
	"github.com/jeju-network/crosschain/intent"
	"github.com/jeju-network/crosschain/relay"
)

// ErrNoRelayConfigured is returned by New when neither a relay endpoint nor
// a pre-built relay client is supplied.
var ErrNoRelayConfigured = errors.New("no relay endpoint configured")

// Config wires a Coordinator.
type Config struct {
	// HomeChainID is the chain identities are created on. Must be present
	// in the registry.
	HomeChainID uint64

	// Registry of supported chains. Defaults to the built-in networks when
	// nil.
	Registry *chains.Registry

	// InitCodeHashes overrides the account init-code hash per chain id.
	// Chains without an entry use the placeholder hash, whose predictions
	// only match a factory deploying the placeholder init code.
	InitCodeHashes map[uint64]common.Hash

	// RelayURL is the relay's JSON-RPC endpoint. Ignored when RelayClient
	// is set.
	RelayURL string

	// RelayWSURL optionally enables the pushed status feed.
	RelayWSURL string

	// RelayJWTSecret optionally authenticates relay requests.
	RelayJWTSecret *[32]byte

	// RelayClient overrides RelayURL with a pre-built client.
	RelayClient gateway.IRelayClient

	// Validity overrides the intent validity window.
	Validity time.Duration

	// Signer signs auth intents when present.
	Signer intent.Signer

	// Dialer overrides how per-chain RPC clients are created.
	Dialer ChainDialer
}

// Coordinator is the top-level object a process embeds.
type Coordinator struct {
	registry *chains.Registry
	deriver  *deriver.Deriver
	store    *identity.Store
	factory  *intent.Factory
	gateway  *gateway.Gateway

	dial ChainDialer

	mu      sync.Mutex
	clients map[uint64]IChainClient
	closed  bool

	logger log.Logger
}

// New assembles a coordinator from the config.
func New(cfg Config) (*Coordinator, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = chains.DefaultRegistry()
	}

	if _, err := registry.Get(cfg.HomeChainID); err != nil {
		return nil, fmt.Errorf("home chain %d: %w", cfg.HomeChainID, err)
	}

	var deriverOpts []deriver.Option
	for chainID, hash := range cfg.InitCodeHashes {
		deriverOpts = append(deriverOpts, deriver.WithInitCodeHash(chainID, hash))
	}

	d := deriver.New(registry, deriverOpts...)
	store := identity.NewStore(d, cfg.HomeChainID)

	var factoryOpts []intent.Option
	if cfg.Validity > 0 {
		factoryOpts = append(factoryOpts, intent.WithValidity(cfg.Validity))
	}

	if cfg.Signer != nil {
		factoryOpts = append(factoryOpts, intent.WithSigner(cfg.Signer))
	}

	relayClient := cfg.RelayClient
	if relayClient == nil {
		if cfg.RelayURL == "" {
			return nil, ErrNoRelayConfigured
		}

		var relayOpts []relay.ClientOption
		if cfg.RelayJWTSecret != nil {
			relayOpts = append(relayOpts, relay.WithJWTSecret(*cfg.RelayJWTSecret))
		}

		client, err := relay.NewClient(context.Background(), cfg.RelayURL, relayOpts...)
		if err != nil {
			return nil, err
		}
		relayClient = client
	}

	var gatewayOpts []gateway.Option
	if cfg.RelayWSURL != "" {
		ws, err := relay.NewWSClient(cfg.RelayWSURL)
		if err != nil {
			return nil, err
		}
		gatewayOpts = append(gatewayOpts, gateway.WithWSClient(ws))
	}

	dial := cfg.Dialer
	if dial == nil {
		dial = DialChain
	}

	c := &Coordinator{
		registry: registry,
		deriver:  d,
		store:    store,
		factory:  intent.NewFactory(store, factoryOpts...),
		gateway:  gateway.New(relayClient, gatewayOpts...),
		dial:     dial,
		clients:  make(map[uint64]IChainClient),
		logger:   log.New("module", "coordinator"),
	}

	c.logger.Info("Coordinator assembled", "home", cfg.HomeChainID, "chains", registry.Len())

	return c, nil
}

// Registry returns the chain registry.
func (c *Coordinator) Registry() *chains.Registry { return c.registry }

// Deriver returns the address deriver.
func (c *Coordinator) Deriver() *deriver.Deriver { return c.deriver }

// Store returns the identity state store.
func (c *Coordinator) Store() *identity.Store { return c.store }

// Factory returns the intent factory.
func (c *Coordinator) Factory() *intent.Factory { return c.factory }

// Gateway returns the intent gateway.
func (c *Coordinator) Gateway() *gateway.Gateway { return c.gateway }

// chainClient returns the cached RPC client for a chain, dialing it on
// first use.
func (c *Coordinator) chainClient(ctx context.Context, chainID uint64) (IChainClient, error) {
	desc, err := c.registry.Get(chainID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("coordinator is closed")
	}

	if client, ok := c.clients[chainID]; ok {
		return client, nil
	}

	client, err := c.dial(ctx, desc)
	if err != nil {
		return nil, err
	}

	c.clients[chainID] = client

	return client, nil
}

// ExportState writes a snapshot of the identity store.
func (c *Coordinator) ExportState(w io.Writer) error {
	return c.store.EncodeSnapshot(w)
}

// ImportState restores the identity store from a snapshot, replacing its
// contents.
func (c *Coordinator) ImportState(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	return c.store.DecodeSnapshot(data)
}

// Close shuts down the gateway and every dialed chain client. Safe to call
// more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	clients := c.clients
	c.clients = make(map[uint64]IChainClient)
	c.mu.Unlock()

	for chainID, client := range clients {
		client.Close()
		c.logger.Debug("Closed chain client", "chain", chainID)
	}

	c.gateway.Close()
}

package chains

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Jeju network chain ids. The mainnet descriptor matches the network defaults
// shipped with the node distribution.
const (
	JejuChainID       = 420690
	JejuDevnetChainID = 420691
)

// Config is the on-disk TOML shape of a chains file:
//
//	[[chains]]
//	chain-id = 420690
//	name = "jeju"
//	rpc-url = "https://rpc.jeju.network"
//	account-factory = "0x..."
type Config struct {
	Chains []ChainConfig `toml:"chains"`
}

// ChainConfig is one chain entry in the config file. Contract addresses are
// optional; absent addresses stay zero.
type ChainConfig struct {
	ChainID          uint64 `toml:"chain-id"`
	Name             string `toml:"name"`
	RPCURL           string `toml:"rpc-url"`
	IdentityRegistry string `toml:"identity-registry"`
	AccountFactory   string `toml:"account-factory"`
	IntentRouter     string `toml:"intent-router"`
	EntryPoint       string `toml:"entry-point"`
}

func (c ChainConfig) descriptor() (ChainDescriptor, error) {
	desc := ChainDescriptor{
		ChainID: c.ChainID,
		Name:    c.Name,
		RPCURL:  c.RPCURL,
	}

	for _, field := range []struct {
		value string
		dst   *common.Address
	}{
		{c.IdentityRegistry, &desc.IdentityRegistry},
		{c.AccountFactory, &desc.AccountFactory},
		{c.IntentRouter, &desc.IntentRouter},
		{c.EntryPoint, &desc.EntryPoint},
	} {
		if field.value == "" {
			continue
		}
		if !common.IsHexAddress(field.value) {
			return ChainDescriptor{}, fmt.Errorf("chain %d: invalid address %q", c.ChainID, field.value)
		}
		*field.dst = common.HexToAddress(field.value)
	}

	return desc, nil
}

// FromConfig builds a registry from a parsed config.
func FromConfig(cfg Config) (*Registry, error) {
	reg := NewRegistry()
	for _, entry := range cfg.Chains {
		desc, err := entry.descriptor()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(desc); err != nil {
			return nil, fmt.Errorf("chain %q: %w", entry.Name, err)
		}
	}

	return reg, nil
}

// LoadFile reads a TOML chains file and builds a registry from it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse chains file %s: %w", path, err)
	}

	return FromConfig(cfg)
}

// DefaultRegistry returns a registry pre-loaded with the Jeju network
// descriptors. Contract addresses are left zero until the deployments are
// pinned per release.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(ChainDescriptor{
		ChainID: JejuChainID,
		Name:    "jeju",
		RPCURL:  "https://rpc.jeju.network",
	})
	reg.Register(ChainDescriptor{
		ChainID: JejuDevnetChainID,
		Name:    "jeju-devnet",
		RPCURL:  "https://devnet-rpc.jeju.network",
	})

	return reg
}

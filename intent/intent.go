// Package intent defines the content-addressed intent shapes exchanged with
// the relay, their canonical encoding and hashing, and the factory that
// builds them from identity state. Intents are ephemeral: they are built,
// hashed, submitted and then dropped locally; the relay owns their
// lifecycle.
package intent

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Kind discriminates the intent variants on the wire and in code. The union
// is closed: only types in this package can implement Intent.
type Kind string

const (
	KindIdentitySync   Kind = "identity_sync"
	KindCrossChainAuth Kind = "crosschain_auth"
)

// Valid reports whether the kind is a known variant.
func (k Kind) Valid() bool {
	switch k {
	case KindIdentitySync, KindCrossChainAuth:
		return true
	default:
		return false
	}
}

// Intent is the closed union of intent variants.
type Intent interface {
	Kind() Kind

	// canonicalBody returns the canonical key/value form that encoding and
	// hashing operate on. Implementations must stringify every integer and
	// never return nil slices or maps, so the encoded form is stable.
	canonicalBody() map[string]any
}

// SyncState is the optional state payload carried by an identity-sync
// intent. All fields are optional; an all-empty payload is a pure
// "re-anchor the replica" sync.
type SyncState struct {
	LinkedProviders []common.Address
	Metadata        map[string]string
	Credentials     []common.Hash
}

// Empty reports whether no state field is populated.
func (s *SyncState) Empty() bool {
	return len(s.LinkedProviders) == 0 && len(s.Metadata) == 0 && len(s.Credentials) == 0
}

// IdentitySyncIntent asks a solver to propagate identity state from the
// source chain replica to the target chain. Proof binds the intent to the
// source replica snapshot it was built from.
type IdentitySyncIntent struct {
	SourceChain uint64
	TargetChain uint64
	IdentityID  common.Hash
	NewState    SyncState
	Proof       common.Hash
	Deadline    uint64 // unix seconds
}

// Kind implements Intent.
func (i *IdentitySyncIntent) Kind() Kind { return KindIdentitySync }

func (i *IdentitySyncIntent) canonicalBody() map[string]any {
	providers := make([]string, 0, len(i.NewState.LinkedProviders))
	for _, p := range i.NewState.LinkedProviders {
		providers = append(providers, canonicalAddress(p))
	}

	metadata := make(map[string]string, len(i.NewState.Metadata))
	for k, v := range i.NewState.Metadata {
		metadata[k] = v
	}

	credentials := make([]string, 0, len(i.NewState.Credentials))
	for _, c := range i.NewState.Credentials {
		credentials = append(credentials, c.Hex())
	}

	return map[string]any{
		"kind":        string(KindIdentitySync),
		"sourceChain": canonicalUint64(i.SourceChain),
		"targetChain": canonicalUint64(i.TargetChain),
		"identityId":  i.IdentityID.Hex(),
		"newState": map[string]any{
			"linkedProviders": providers,
			"metadata":        metadata,
			"credentials":     credentials,
		},
		"proof":    i.Proof.Hex(),
		"deadline": canonicalUint64(i.Deadline),
	}
}

// CrossChainAuthIntent asks a solver to execute a call as the identity's
// smart account on the target chain. The source chain is always the home
// chain of the coordinator that built the intent.
type CrossChainAuthIntent struct {
	IdentityID     common.Hash
	SourceChain    uint64
	TargetChain    uint64
	TargetContract common.Address
	TargetFunction [4]byte
	CallData       []byte
	Value          *uint256.Int
	Deadline       uint64 // unix seconds
	Signature      []byte // empty until a signer is wired in
}

// Kind implements Intent.
func (i *CrossChainAuthIntent) Kind() Kind { return KindCrossChainAuth }

func (i *CrossChainAuthIntent) canonicalBody() map[string]any {
	value := i.Value
	if value == nil {
		value = uint256.NewInt(0)
	}

	return map[string]any{
		"kind":           string(KindCrossChainAuth),
		"identityId":     i.IdentityID.Hex(),
		"sourceChain":    canonicalUint64(i.SourceChain),
		"targetChain":    canonicalUint64(i.TargetChain),
		"targetContract": canonicalAddress(i.TargetContract),
		"targetFunction": hexutil.Encode(i.TargetFunction[:]),
		"callData":       hexutil.Encode(i.CallData),
		"value":          value.Dec(),
		"deadline":       canonicalUint64(i.Deadline),
		"signature":      hexutil.Encode(i.Signature),
	}
}

// canonicalAddress renders an address as plain lowercase hex. Checksum
// casing carries no information and would make the canonical form depend on
// the renderer.
func canonicalAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrUnknownIntentKind is returned when an Intent value is none of the known
// variants. With the union closed this only fires on a new variant that the
// encoder has not been taught yet.
var ErrUnknownIntentKind = errors.New("unknown intent kind")

// CanonicalEncoding returns the canonical serialized form of the intent:
// JSON with lexicographically sorted keys at every level, every integer
// rendered as a decimal string and every byte field as 0x-hex. The same
// intent always encodes to the same bytes; this is the exact payload that
// gets hashed and submitted.
func CanonicalEncoding(i Intent) ([]byte, error) {
	var body map[string]any

	switch it := i.(type) {
	case *IdentitySyncIntent:
		body = it.canonicalBody()
	case *CrossChainAuthIntent:
		body = it.canonicalBody()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownIntentKind, i)
	}

	// encoding/json sorts map keys, which is what makes the form canonical.
	return json.Marshal(body)
}

// Hash computes the IntentId: one keccak256 pass over the canonical
// encoding. Deterministic and collision-resistant across structurally
// different intents, but deliberately not an idempotency key: rebuilt
// intents differ in Deadline and therefore in id.
func Hash(i Intent) (common.Hash, error) {
	enc, err := CanonicalEncoding(i)
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash(enc), nil
}

func canonicalUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ABI argument shapes for the instruction tuple encoders.
var (
	abiAddress = mustABIType("address")
	abiUint256 = mustABIType("uint256")
	abiBytes   = mustABIType("bytes")

	tokenTransferArgs = abi.Arguments{
		{Type: abiAddress}, // from
		{Type: abiAddress}, // to
		{Type: abiUint256}, // amount
		{Type: abiAddress}, // token
		{Type: abiUint256}, // source chain
		{Type: abiUint256}, // target chain
	}

	contractCallArgs = abi.Arguments{
		{Type: abiAddress}, // caller
		{Type: abiAddress}, // target
		{Type: abiUint256}, // value
		{Type: abiBytes},   // data
		{Type: abiUint256}, // target chain
	}
)

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}

// EncodeTokenTransfer packs a token-transfer instruction tuple
// (address,address,uint256,address,uint256,uint256) the way a settlement
// contract expects it. Independent of the intent structs above.
func EncodeTokenTransfer(from, to common.Address, amount *uint256.Int, token common.Address, sourceChain, targetChain uint64) ([]byte, error) {
	return tokenTransferArgs.Pack(
		from,
		to,
		toBig(amount),
		token,
		new(big.Int).SetUint64(sourceChain),
		new(big.Int).SetUint64(targetChain),
	)
}

// EncodeContractCall packs a contract-call instruction tuple
// (address,address,uint256,bytes,uint256).
func EncodeContractCall(caller, target common.Address, value *uint256.Int, data []byte, targetChain uint64) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}

	return contractCallArgs.Pack(
		caller,
		target,
		toBig(value),
		data,
		new(big.Int).SetUint64(targetChain),
	)
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v.ToBig()
}

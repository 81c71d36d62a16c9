package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeju-network/crosschain/intent"
)

func TestDecodeIntentFileSync(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"kind": "identity_sync",
		"sourceChain": 420690,
		"targetChain": 8453,
		"identityId": "0x1111111111111111111111111111111111111111111111111111111111111111",
		"newState": {
			"linkedProviders": ["0x00000000000000000000000000000000000000aa"],
			"metadata": {"ens": "alice.eth"}
		},
		"proof": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"deadline": 1700003600
	}`)

	decoded, err := decodeIntentFile(data)
	require.NoError(t, err)

	sync, ok := decoded.(*intent.IdentitySyncIntent)
	require.True(t, ok)

	assert.Equal(t, uint64(420690), sync.SourceChain)
	assert.Equal(t, uint64(8453), sync.TargetChain)
	assert.Equal(t, common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"), sync.IdentityID)
	assert.Equal(t, []common.Address{common.HexToAddress("0xaa")}, sync.NewState.LinkedProviders)
	assert.Equal(t, map[string]string{"ens": "alice.eth"}, sync.NewState.Metadata)
	assert.Empty(t, sync.NewState.Credentials)
	assert.Equal(t, uint64(1700003600), sync.Deadline)

	// The friendly file form and the canonical form hash identically.
	hash, err := intent.Hash(sync)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
}

func TestDecodeIntentFileAuth(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"kind": "crosschain_auth",
		"identityId": "0x1111111111111111111111111111111111111111111111111111111111111111",
		"sourceChain": 420690,
		"targetChain": 1,
		"targetContract": "0x00000000000000000000000000000000000000bb",
		"targetFunction": "0xa9059cbb",
		"callData": "0xdeadbeef",
		"value": "1000000000000000000",
		"deadline": 1700003600
	}`)

	decoded, err := decodeIntentFile(data)
	require.NoError(t, err)

	auth, ok := decoded.(*intent.CrossChainAuthIntent)
	require.True(t, ok)

	assert.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, auth.TargetFunction)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, auth.CallData)
	assert.Equal(t, "1000000000000000000", auth.Value.Dec())
	assert.Empty(t, auth.Signature)
}

func TestDecodeIntentFileErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
		want string
	}{
		{"not json", `{`, "invalid intent file"},
		{"unknown kind", `{"kind": "teleport"}`, "unknown intent kind"},
		{"short selector", `{"kind": "crosschain_auth", "targetFunction": "0xa9"}`, "4-byte selector"},
		{"bad value", `{"kind": "crosschain_auth", "targetFunction": "0xa9059cbb", "value": "not-a-number"}`, "invalid value"},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeIntentFile([]byte(tc.data))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestDecodeIntentFileDefaultsValueToZero(t *testing.T) {
	t.Parallel()

	decoded, err := decodeIntentFile([]byte(`{"kind": "crosschain_auth", "targetFunction": "0x00000000"}`))
	require.NoError(t, err)

	auth := decoded.(*intent.CrossChainAuthIntent)
	require.NotNil(t, auth.Value)
	assert.True(t, auth.Value.IsZero())
}

func TestParseHash(t *testing.T) {
	t.Parallel()

	hash, err := parseHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"), hash)

	_, err = parseHash("0x1234")
	require.ErrorContains(t, err, "expected 32 bytes")

	_, err = parseHash("not-hex")
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	addr, err := parseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xaa"), addr)

	_, err = parseAddress("0x1234")
	require.ErrorContains(t, err, "not a hex address")
}

package intent

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func sampleSyncIntent() *IdentitySyncIntent {
	return &IdentitySyncIntent{
		SourceChain: 1337,
		TargetChain: 8453,
		IdentityID:  crypto.Keccak256Hash([]byte("identity:alice")),
		NewState: SyncState{
			LinkedProviders: []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000aa")},
			Metadata:        map[string]string{"ens": "alice.jeju", "avatar": "ipfs://Qm"},
			Credentials:     []common.Hash{crypto.Keccak256Hash([]byte("credential"))},
		},
		Proof:    crypto.Keccak256Hash([]byte("proof")),
		Deadline: 1700003600,
	}
}

func sampleAuthIntent() *CrossChainAuthIntent {
	return &CrossChainAuthIntent{
		IdentityID:     crypto.Keccak256Hash([]byte("identity:alice")),
		SourceChain:    1337,
		TargetChain:    1,
		TargetContract: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		TargetFunction: [4]byte{0xa9, 0x05, 0x9c, 0xbb},
		CallData:       []byte{0x01, 0x02, 0x03},
		Value:          uint256.NewInt(1e18),
		Deadline:       1700003600,
		Signature:      []byte{},
	}
}

func TestCanonicalEncodingDeterministic(t *testing.T) {
	for _, i := range []Intent{sampleSyncIntent(), sampleAuthIntent()} {
		a, err := CanonicalEncoding(i)
		require.NoError(t, err)

		b, err := CanonicalEncoding(i)
		require.NoError(t, err)
		require.Equal(t, a, b)
	}

	// Keys are sorted lexicographically, so the first key of a sync intent
	// is always "deadline" and of an auth intent "callData".
	sync, err := CanonicalEncoding(sampleSyncIntent())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(sync, []byte(`{"deadline":`)), "got %s", sync)

	auth, err := CanonicalEncoding(sampleAuthIntent())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(auth, []byte(`{"callData":`)), "got %s", auth)
}

// Every integer must ride as a decimal string. A single native JSON number
// anywhere in the canonical form would reintroduce the precision loss the
// format exists to avoid.
func TestCanonicalEncodingHasNoNumberTokens(t *testing.T) {
	for _, i := range []Intent{sampleSyncIntent(), sampleAuthIntent()} {
		enc, err := CanonicalEncoding(i)
		require.NoError(t, err)

		dec := json.NewDecoder(bytes.NewReader(enc))
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)

			_, isFloat := tok.(float64)
			require.False(t, isFloat, "canonical encoding contains a JSON number: %v in %s", tok, enc)
		}
	}
}

func TestCanonicalEncodingEmptyFields(t *testing.T) {
	i := &CrossChainAuthIntent{Deadline: 1}

	enc, err := CanonicalEncoding(i)
	require.NoError(t, err)

	// Nil slices and values must render as empty hex / zero, never as null.
	require.NotContains(t, string(enc), "null")
	require.Contains(t, string(enc), `"callData":"0x"`)
	require.Contains(t, string(enc), `"signature":"0x"`)
	require.Contains(t, string(enc), `"value":"0"`)

	sync := &IdentitySyncIntent{Deadline: 1}

	enc, err = CanonicalEncoding(sync)
	require.NoError(t, err)
	require.NotContains(t, string(enc), "null")
	require.Contains(t, string(enc), `"linkedProviders":[]`)
	require.Contains(t, string(enc), `"metadata":{}`)
}

func TestHashDistinguishesVariantsAndFields(t *testing.T) {
	base, err := Hash(sampleAuthIntent())
	require.NoError(t, err)

	syncHash, err := Hash(sampleSyncIntent())
	require.NoError(t, err)
	require.NotEqual(t, base, syncHash)

	mutations := map[string]func(*CrossChainAuthIntent){
		"identity": func(i *CrossChainAuthIntent) { i.IdentityID[0] ^= 0xff },
		"source":   func(i *CrossChainAuthIntent) { i.SourceChain++ },
		"target":   func(i *CrossChainAuthIntent) { i.TargetChain++ },
		"contract": func(i *CrossChainAuthIntent) { i.TargetContract[19] ^= 0xff },
		"selector": func(i *CrossChainAuthIntent) { i.TargetFunction[0] ^= 0xff },
		"calldata": func(i *CrossChainAuthIntent) { i.CallData = append(i.CallData, 0xff) },
		"value":    func(i *CrossChainAuthIntent) { i.Value = uint256.NewInt(2e18) },
		"deadline": func(i *CrossChainAuthIntent) { i.Deadline++ },
		"sig":      func(i *CrossChainAuthIntent) { i.Signature = []byte{0x01} },
	}
	for name, mutate := range mutations {
		mutated := sampleAuthIntent()
		mutate(mutated)

		h, err := Hash(mutated)
		require.NoError(t, err)
		require.NotEqual(t, base, h, "mutation %q did not change the hash", name)
	}
}

// Rebuilding the same intent later yields a different id once the deadline
// moved: the id is a content fingerprint, not an idempotency key.
func TestHashIsNotIdempotencyKey(t *testing.T) {
	a := sampleSyncIntent()
	b := sampleSyncIntent()
	b.Deadline++

	ha, err := Hash(a)
	require.NoError(t, err)

	hb, err := Hash(b)
	require.NoError(t, err)
	require.NotEqual(t, ha, hb)
}

type bogusIntent struct{}

func (bogusIntent) Kind() Kind                    { return Kind("bogus") }
func (bogusIntent) canonicalBody() map[string]any { return nil }

func TestUnknownIntentKindRejected(t *testing.T) {
	_, err := CanonicalEncoding(bogusIntent{})
	require.ErrorIs(t, err, ErrUnknownIntentKind)

	_, err = Hash(bogusIntent{})
	require.ErrorIs(t, err, ErrUnknownIntentKind)

	require.False(t, Kind("bogus").Valid())
	require.True(t, KindIdentitySync.Valid())
	require.True(t, KindCrossChainAuth.Valid())
}

func TestEncodeTokenTransfer(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount := uint256.NewInt(42)

	packed, err := EncodeTokenTransfer(from, to, amount, token, 1337, 8453)
	require.NoError(t, err)
	require.Len(t, packed, 6*32)

	word := func(n int) []byte { return packed[n*32 : (n+1)*32] }
	require.Equal(t, common.LeftPadBytes(from.Bytes(), 32), word(0))
	require.Equal(t, common.LeftPadBytes(to.Bytes(), 32), word(1))
	require.Equal(t, common.LeftPadBytes([]byte{42}, 32), word(2))
	require.Equal(t, common.LeftPadBytes(token.Bytes(), 32), word(3))
	require.Equal(t, common.LeftPadBytes([]byte{0x05, 0x39}, 32), word(4))
	require.Equal(t, common.LeftPadBytes([]byte{0x21, 0x05}, 32), word(5))

	// Nil amount packs as zero.
	packed, err = EncodeTokenTransfer(from, to, nil, token, 1337, 8453)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 32), packed[2*32:3*32])
}

func TestEncodeContractCall(t *testing.T) {
	caller := common.HexToAddress("0x1111111111111111111111111111111111111111")
	target := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	packed, err := EncodeContractCall(caller, target, uint256.NewInt(7), data, 1)
	require.NoError(t, err)

	// Head (5 words) + dynamic tail (length word + one padded data word).
	require.Len(t, packed, 5*32+32+32)

	word := func(n int) []byte { return packed[n*32 : (n+1)*32] }
	require.Equal(t, common.LeftPadBytes(caller.Bytes(), 32), word(0))
	require.Equal(t, common.LeftPadBytes(target.Bytes(), 32), word(1))
	require.Equal(t, common.LeftPadBytes([]byte{7}, 32), word(2))
	// Offset of the bytes tail relative to the head start.
	require.Equal(t, common.LeftPadBytes([]byte{0xa0}, 32), word(3))
	require.Equal(t, common.LeftPadBytes([]byte{1}, 32), word(4))
	require.Equal(t, common.LeftPadBytes([]byte{4}, 32), word(5))
	require.Equal(t, common.RightPadBytes(data, 32), word(6))

	// Nil data still packs (empty bytes tail).
	packed, err = EncodeContractCall(caller, target, nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, packed, 5*32+32)
}

func BenchmarkIntentHash(b *testing.B) {
	i := sampleAuthIntent()

	b.ReportAllocs()
	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		if _, err := Hash(i); err != nil {
			b.Fatalf("hash failed: %v", err)
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/jeju-network/crosschain/chains"
	"github.com/jeju-network/crosschain/deriver"
	"github.com/jeju-network/crosschain/intent"
)

var (
	chainFlag = &cli.Uint64Flag{
		Name:     "chain",
		Usage:    "Target chain id",
		Required: true,
	}
	intentFileFlag = &cli.StringFlag{
		Name:  "file",
		Usage: "Intent JSON file (stdin when \"-\")",
		Value: "-",
	}
	canonicalFlag = &cli.BoolFlag{
		Name:  "canonical",
		Usage: "Also print the canonical encoding the hash covers",
	}
)

var chainsCommand = &cli.Command{
	Name:   "chains",
	Usage:  "List the chains in the registry",
	Action: runChains,
}

var predictCommand = &cli.Command{
	Name:      "predict",
	Usage:     "Predict the smart account address of an identity on a chain",
	ArgsUsage: "<identity-id> <owner>",
	Flags:     []cli.Flag{chainFlag},
	Action:    runPredict,
}

var intentHashCommand = &cli.Command{
	Name:   "intent-hash",
	Usage:  "Compute the canonical hash of an intent JSON file",
	Flags:  []cli.Flag{intentFileFlag, canonicalFlag},
	Action: runIntentHash,
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(*cli.Context) error {
		fmt.Println("crosschain version", versionString())
		if gitCommit != "" {
			fmt.Println("Git commit:", gitCommit)
		}
		fmt.Println("Go version:", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

		return nil
	},
}

func loadRegistry(ctx *cli.Context) (*chains.Registry, error) {
	if file := ctx.String(configFlag.Name); file != "" {
		return chains.LoadFile(file)
	}

	return chains.DefaultRegistry(), nil
}

func runChains(ctx *cli.Context) error {
	registry, err := loadRegistry(ctx)
	if err != nil {
		return err
	}

	descriptors := registry.List()
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].ChainID < descriptors[j].ChainID })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN ID\tNAME\tRPC\tACCOUNT FACTORY")
	for _, desc := range descriptors {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", desc.ChainID, desc.Name, desc.RPCURL, desc.AccountFactory.Hex())
	}

	return w.Flush()
}

func runPredict(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("expected <identity-id> <owner>, got %d arguments", ctx.NArg())
	}

	identityID, err := parseHash(ctx.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid identity id: %w", err)
	}

	owner, err := parseAddress(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	registry, err := loadRegistry(ctx)
	if err != nil {
		return err
	}

	address, err := deriver.New(registry).Predict(identityID, owner, ctx.Uint64(chainFlag.Name))
	if err != nil {
		return err
	}

	fmt.Println(address.Hex())

	return nil
}

func runIntentHash(ctx *cli.Context) error {
	var (
		data []byte
		err  error
	)

	if file := ctx.String(intentFileFlag.Name); file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}

	if err != nil {
		return err
	}

	i, err := decodeIntentFile(data)
	if err != nil {
		return err
	}

	hash, err := intent.Hash(i)
	if err != nil {
		return err
	}

	fmt.Println(hash.Hex())

	if ctx.Bool(canonicalFlag.Name) {
		enc, err := intent.CanonicalEncoding(i)
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
	}

	return nil
}

// File shapes accept native JSON numbers and hex strings for convenience;
// canonicalization happens after decoding.
type syncIntentFile struct {
	SourceChain uint64      `json:"sourceChain"`
	TargetChain uint64      `json:"targetChain"`
	IdentityID  common.Hash `json:"identityId"`
	NewState    struct {
		LinkedProviders []common.Address  `json:"linkedProviders"`
		Metadata        map[string]string `json:"metadata"`
		Credentials     []common.Hash     `json:"credentials"`
	} `json:"newState"`
	Proof    common.Hash `json:"proof"`
	Deadline uint64      `json:"deadline"`
}

type authIntentFile struct {
	IdentityID     common.Hash    `json:"identityId"`
	SourceChain    uint64         `json:"sourceChain"`
	TargetChain    uint64         `json:"targetChain"`
	TargetContract common.Address `json:"targetContract"`
	TargetFunction hexutil.Bytes  `json:"targetFunction"`
	CallData       hexutil.Bytes  `json:"callData"`
	Value          string         `json:"value"`
	Deadline       uint64         `json:"deadline"`
	Signature      hexutil.Bytes  `json:"signature"`
}

func decodeIntentFile(data []byte) (intent.Intent, error) {
	var envelope struct {
		Kind intent.Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid intent file: %w", err)
	}

	switch envelope.Kind {
	case intent.KindIdentitySync:
		var file syncIntentFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("invalid sync intent: %w", err)
		}

		return &intent.IdentitySyncIntent{
			SourceChain: file.SourceChain,
			TargetChain: file.TargetChain,
			IdentityID:  file.IdentityID,
			NewState: intent.SyncState{
				LinkedProviders: file.NewState.LinkedProviders,
				Metadata:        file.NewState.Metadata,
				Credentials:     file.NewState.Credentials,
			},
			Proof:    file.Proof,
			Deadline: file.Deadline,
		}, nil

	case intent.KindCrossChainAuth:
		var file authIntentFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("invalid auth intent: %w", err)
		}

		if len(file.TargetFunction) != 4 {
			return nil, fmt.Errorf("target function must be a 4-byte selector, got %d bytes", len(file.TargetFunction))
		}

		value := uint256.NewInt(0)
		if file.Value != "" {
			parsed, err := uint256.FromDecimal(file.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", file.Value, err)
			}
			value = parsed
		}

		var selector [4]byte
		copy(selector[:], file.TargetFunction)

		return &intent.CrossChainAuthIntent{
			IdentityID:     file.IdentityID,
			SourceChain:    file.SourceChain,
			TargetChain:    file.TargetChain,
			TargetContract: file.TargetContract,
			TargetFunction: selector,
			CallData:       file.CallData,
			Value:          value,
			Deadline:       file.Deadline,
			Signature:      file.Signature,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", intent.ErrUnknownIntentKind, envelope.Kind)
	}
}

func parseHash(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}

	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(raw))
	}

	return common.BytesToHash(raw), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}

	return common.HexToAddress(s), nil
}

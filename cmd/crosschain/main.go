// crosschain is the command-line companion of the coordinator: it inspects
// chain registries, predicts account addresses and hashes intent files
// without touching any network.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"gopkg.in/natefinch/lumberjack.v2"
)

const version = "0.1.0"

// gitCommit is set via ldflags at build time.
var gitCommit = ""

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML chain registry file (built-in networks when omitted)",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a rotated file instead of stderr",
	}
	otlpEndpointFlag = &cli.StringFlag{
		Name:  "otlp.endpoint",
		Usage: "OTLP gRPC endpoint for trace export (tracing off when omitted)",
	}
)

func main() {
	app := &cli.App{
		Name:    "crosschain",
		Usage:   "cross-chain identity coordinator tool",
		Version: versionString(),
		Flags: []cli.Flag{
			configFlag,
			verbosityFlag,
			logFileFlag,
			otlpEndpointFlag,
		},
		Before: setup,
		Commands: []*cli.Command{
			chainsCommand,
			predictCommand,
			intentHashCommand,
			versionCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionString() string {
	if gitCommit != "" {
		return version + "-" + gitCommit[:8]
	}

	return version
}

// setup configures logging and, when requested, trace export before any
// command runs.
func setup(ctx *cli.Context) error {
	var (
		output   io.Writer = os.Stderr
		usecolor           = os.Getenv("TERM") != "dumb"
	)

	if file := ctx.String(logFileFlag.Name); file != "" {
		output = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		usecolor = false
	}

	handler := log.NewTerminalHandlerWithLevel(output, log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)), usecolor)
	log.SetDefault(log.NewLogger(handler))

	if endpoint := ctx.String(otlpEndpointFlag.Name); endpoint != "" {
		shutdown, err := setupTracing(ctx.Context, endpoint)
		if err != nil {
			return fmt.Errorf("failed to set up trace export: %w", err)
		}

		ctx.App.After = func(*cli.Context) error {
			return shutdown(context.Background())
		}
	}

	return nil
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("crosschain"),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

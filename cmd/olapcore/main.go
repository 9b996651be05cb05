package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const rootUsage = `olapcore — OLAP identifier resolution engine & tools

USAGE:
  olapcore <command> [flags]

COMMANDS:
  serve            Run the catalog gRPC service and the admin HTTP API
  resolve          Resolve identifiers against a cube and print the result
  seed-members     Copy catalog members into the PostgreSQL member table
  compile-proto    Write the catalog service .proto definition
  help             Show help for any command
`

const commonUsage = `  -config <file>                      HCL config file (default: built-in defaults)
  -set <key=value>                    Override a config key, e.g. server.admin_addr=:9090. Repeatable
  -catalog <dir>                      Directory of .hcl cube files (config: catalog_dir)
  -reader <kind>                      catalog, grpc or postgres (config: reader)
  -ssas                               Use SSAS-compatible unique names (config: ssas_compatible_naming)
  -log.level <level>                  debug, info, warn or error (config: log.level)
  -log.format <format>                text or json (config: log.format)
`

const serveUsage = `serve FLAGS:
` + commonUsage + `  -grpc.addr <addr>                   Catalog gRPC listen address (config: server.grpc_addr)
  -admin.addr <addr>                  Admin HTTP listen address (config: server.admin_addr)
  -admin.pretty                       Pretty-print JSON responses
  -admin.metadata-header <name>       Forward HTTP header to gRPC metadata. Repeatable
  -otel.endpoint <addr>               OTLP collector endpoint (config: telemetry.otel_endpoint)
`

const resolveUsage = `resolve FLAGS:
` + commonUsage + `  -cube <name>                        Cube to resolve against (default: Sales)
  -axis <ids>                         Identifiers of one axis, separated by ';'. Repeatable
  -slicer <ids>                       Identifiers of the slicer tuple, separated by ';'
  -json                               Print the result as JSON
`

const seedUsage = `seed-members FLAGS:
` + commonUsage + `  -dsn <dsn>                          PostgreSQL connection string (config: memberstore.dsn)
  -create                             Create the member table if missing
`

const compileProtoUsage = `compile-proto FLAGS:
  -out <dir>               Output directory (default: print to stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("olapcore", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "resolve":
		return cmdResolve(ctx, cmdArgs, stdout, stderr)
	case "seed-members":
		return cmdSeed(ctx, cmdArgs, stderr)
	case "compile-proto":
		return cmdCompileProto(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "resolve":
		fmt.Fprint(stdout, resolveUsage)
	case "seed-members":
		fmt.Fprint(stdout, seedUsage)
	case "compile-proto":
		fmt.Fprint(stdout, compileProtoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

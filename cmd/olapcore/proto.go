package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"

	"github.com/hanpama/olapcore/internal/catalogrpc"
)

func cmdCompileProto(args []string, stdout, stderr io.Writer) error {
	outDir := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outDir, "out", outDir, "Output directory for the generated .proto file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileProtoUsage)
		return err
	}
	if outDir == "" {
		return catalogrpc.Render(stdout)
	}
	if err := catalogrpc.RenderDir(outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/memberstore"
)

func cmdSeed(ctx context.Context, args []string, stderr io.Writer) error {
	var common commonFlags
	create := false

	fs := flag.NewFlagSet("seed-members", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	common.register(fs)
	common.bind(fs, "dsn", "memberstore.dsn")
	fs.BoolVar(&create, "create", create, "Create the member table if missing")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, seedUsage)
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if cfg.MemberStore.DSN == "" {
		fmt.Fprint(stderr, seedUsage)
		return fmt.Errorf("-dsn is required")
	}
	ctx = ctxlog.WithLogger(ctx, newLogger(cfg, stderr))

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	store, pool, err := memberstore.Open(ctx, cfg.MemberStore.DSN, cfg.MemberStore.Table)
	if err != nil {
		return err
	}
	defer pool.Close()
	if create {
		if err := store.CreateTable(ctx); err != nil {
			return err
		}
	}
	for _, cube := range cat.Cubes() {
		if _, err := store.Seed(ctx, cat, cube); err != nil {
			return err
		}
	}
	return nil
}

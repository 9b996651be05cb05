package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hanpama/olapcore/internal/catalog"
	"github.com/hanpama/olapcore/internal/catalogrpc"
	"github.com/hanpama/olapcore/internal/config"
	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/memberstore"
	"github.com/hanpama/olapcore/internal/olap"
)

type override struct{ key, value string }

// commonFlags are shared by every command that loads the configuration.
// Flag values are applied on top of the config file in command-line order.
type commonFlags struct {
	configPath string
	overrides  []override
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "HCL config file")
	fs.Func("set", "Override a config key", func(v string) error {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid -set %q, want key=value", v)
		}
		c.add(k, val)
		return nil
	})
	fs.BoolFunc("ssas", "Use SSAS-compatible unique names", func(v string) error {
		c.add("ssas_compatible_naming", v)
		return nil
	})
	c.bind(fs, "catalog", "catalog_dir")
	c.bind(fs, "reader", "reader")
	c.bind(fs, "log.level", "log.level")
	c.bind(fs, "log.format", "log.format")
}

// bind declares a string flag that overrides config key.
func (c *commonFlags) bind(fs *flag.FlagSet, name, key string) {
	fs.Func(name, "config: "+key, func(v string) error {
		c.add(key, v)
		return nil
	})
}

func (c *commonFlags) add(key, value string) {
	c.overrides = append(c.overrides, override{key, value})
}

func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	for _, o := range c.overrides {
		if err := cfg.Set(o.key, o.value); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return ctxlog.New(w, cfg.Log.Format, cfg.Log.Level)
}

// loadCatalog reads cube files from catalog_dir, or builds the sample
// Sales cube when no directory is configured.
func loadCatalog(ctx context.Context, cfg *config.Config) (*olap.Catalog, error) {
	if cfg.CatalogDir == "" {
		cat, _ := olap.NewSampleCatalog(cfg.Naming())
		ctxlog.FromContext(ctx).Debug("using sample catalog")
		return cat, nil
	}
	cat, err := catalog.LoadDir(ctx, cfg.CatalogDir, cfg.Naming())
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// openReader returns the member reader selected by cfg.Reader and a
// function releasing it.
func openReader(ctx context.Context, cfg *config.Config, cat *olap.Catalog) (olap.SchemaReader, func(), error) {
	switch cfg.Reader {
	case config.ReaderGRPC:
		r, err := catalogrpc.NewReader(
			catalogrpc.WithTargets(cfg.CatalogRPC.Target),
			catalogrpc.WithRPCTimeout(cfg.RPCTimeout()),
		)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.ReaderPostgres:
		store, pool, err := memberstore.Open(ctx, cfg.MemberStore.DSN, cfg.MemberStore.Table)
		if err != nil {
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return cat, func() {}, nil
	}
}

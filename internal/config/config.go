package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/hanpama/olapcore/internal/olap"
)

// Reader kinds selecting the SchemaReader behind the engine.
const (
	ReaderCatalog  = "catalog"
	ReaderGRPC     = "grpc"
	ReaderPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the engine configuration. The zero value is not valid; use
// Default or Load.
type Config struct {
	SSASCompatibleNaming            bool   `hcl:"ssas_compatible_naming,optional"`
	StrictValidation                bool   `hcl:"strict_validation,optional"`
	IgnoreInvalidMembers            bool   `hcl:"ignore_invalid_members,optional"`
	IgnoreInvalidMembersDuringQuery bool   `hcl:"ignore_invalid_members_during_query,optional"`
	QueryTimeout                    string `hcl:"query_timeout,optional"`
	MatchType                       string `hcl:"match_type,optional"`
	// Reader is one of ReaderCatalog, ReaderGRPC or ReaderPostgres.
	Reader string `hcl:"reader,optional"`
	// CatalogDir holds .hcl cube files. Empty means the built-in sample cube.
	CatalogDir string `hcl:"catalog_dir,optional"`

	Log         *Log         `hcl:"log,block"`
	Telemetry   *Telemetry   `hcl:"telemetry,block"`
	Server      *Server      `hcl:"server,block"`
	CatalogRPC  *CatalogRPC  `hcl:"catalog_rpc,block"`
	MemberStore *MemberStore `hcl:"memberstore,block"`
}

type Log struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

type Telemetry struct {
	OTelEndpoint string `hcl:"otel_endpoint,optional"`
	Service      string `hcl:"service,optional"`
}

type Server struct {
	GRPCAddr  string `hcl:"grpc_addr,optional"`
	AdminAddr string `hcl:"admin_addr,optional"`
}

type CatalogRPC struct {
	Target     string `hcl:"target,optional"`
	RPCTimeout string `hcl:"rpc_timeout,optional"`
}

type MemberStore struct {
	DSN   string `hcl:"dsn,optional"`
	Table string `hcl:"table,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.fill()
	return c
}

func (c *Config) fill() {
	if c.QueryTimeout == "" {
		c.QueryTimeout = "30s"
	}
	if c.MatchType == "" {
		c.MatchType = olap.MatchExact.String()
	}
	if c.Reader == "" {
		c.Reader = ReaderCatalog
	}
	if c.Log == nil {
		c.Log = &Log{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Telemetry == nil {
		c.Telemetry = &Telemetry{}
	}
	if c.Telemetry.Service == "" {
		c.Telemetry.Service = "olapcore"
	}
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":7070"
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = ":8080"
	}
	if c.CatalogRPC == nil {
		c.CatalogRPC = &CatalogRPC{}
	}
	if c.CatalogRPC.RPCTimeout == "" {
		c.CatalogRPC.RPCTimeout = "3s"
	}
	if c.MemberStore == nil {
		c.MemberStore = &MemberStore{}
	}
	if c.MemberStore.Table == "" {
		c.MemberStore.Table = "olap_member"
	}
}

// Load reads an HCL config file. An empty path returns Default. The file
// may refer to environment variables as env.NAME.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(src, path, os.Environ())
}

// Parse decodes src. environ is a list of KEY=value pairs exposed as env.*.
func Parse(src []byte, filename string, environ []string) (*Config, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	var c Config
	if diags := gohcl.DecodeBody(f.Body, evalContext(environ), &c); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	c.fill()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &c, nil
}

func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": env}}
}

// Validate checks values that cannot be expressed in the HCL schema.
func (c *Config) Validate() error {
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.Match(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := time.ParseDuration(c.CatalogRPC.RPCTimeout); err != nil {
		return fmt.Errorf("%w: catalog_rpc.rpc_timeout: %w", ErrInvalidConfig, err)
	}
	switch c.Reader {
	case ReaderCatalog:
	case ReaderGRPC:
		if c.CatalogRPC.Target == "" {
			return fmt.Errorf("%w: reader %q needs catalog_rpc.target", ErrInvalidConfig, c.Reader)
		}
	case ReaderPostgres:
		if c.MemberStore.DSN == "" {
			return fmt.Errorf("%w: reader %q needs memberstore.dsn", ErrInvalidConfig, c.Reader)
		}
	default:
		return fmt.Errorf("%w: unknown reader %q", ErrInvalidConfig, c.Reader)
	}
	return nil
}

// Naming returns the identifier naming mode.
func (c *Config) Naming() olap.Naming {
	if c.SSASCompatibleNaming {
		return olap.NamingSSAS
	}
	return olap.NamingLegacy
}

// Timeout returns the per-execution timeout. Zero means no limit.
func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: query_timeout %q", ErrInvalidConfig, c.QueryTimeout)
	}
	return d, nil
}

// Match returns the configured match type.
func (c *Config) Match() (olap.MatchType, error) { return olap.ParseMatchType(c.MatchType) }

// RPCTimeout returns the catalog client's per-call timeout.
func (c *Config) RPCTimeout() time.Duration {
	d, _ := time.ParseDuration(c.CatalogRPC.RPCTimeout)
	return d
}

// Set overrides one key, addressed by its HCL name. Block attributes use
// a dot, e.g. "server.admin_addr". It is used to apply command flags on
// top of a loaded file.
func (c *Config) Set(key, value string) error {
	boolean := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		*dst = b
		return nil
	}
	switch key {
	case "ssas_compatible_naming":
		return boolean(&c.SSASCompatibleNaming)
	case "strict_validation":
		return boolean(&c.StrictValidation)
	case "ignore_invalid_members":
		return boolean(&c.IgnoreInvalidMembers)
	case "ignore_invalid_members_during_query":
		return boolean(&c.IgnoreInvalidMembersDuringQuery)
	case "query_timeout":
		c.QueryTimeout = value
	case "match_type":
		c.MatchType = value
	case "reader":
		c.Reader = value
	case "catalog_dir":
		c.CatalogDir = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "telemetry.otel_endpoint":
		c.Telemetry.OTelEndpoint = value
	case "telemetry.service":
		c.Telemetry.Service = value
	case "server.grpc_addr":
		c.Server.GRPCAddr = value
	case "server.admin_addr":
		c.Server.AdminAddr = value
	case "catalog_rpc.target":
		c.CatalogRPC.Target = value
	case "catalog_rpc.rpc_timeout":
		c.CatalogRPC.RPCTimeout = value
	case "memberstore.dsn":
		c.MemberStore.DSN = value
	case "memberstore.table":
		c.MemberStore.Table = value
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/olapcore/internal/olap"
)

func TestParse(t *testing.T) {
	src := `
ssas_compatible_naming = true
strict_validation      = true
query_timeout          = "5s"
match_type             = "before"
reader                 = "postgres"

log {
  level = "debug"
}

server {
  admin_addr = "127.0.0.1:9090"
}

memberstore {
  dsn = env.OLAP_DSN
}
`
	c, err := Parse([]byte(src), "olapcore.hcl", []string{"OLAP_DSN=postgres://olap@db/olap", "HOME=/root"})
	require.NoError(t, err)

	want := &Config{
		SSASCompatibleNaming: true,
		StrictValidation:     true,
		QueryTimeout:         "5s",
		MatchType:            "before",
		Reader:               ReaderPostgres,
		Log:                  &Log{Level: "debug", Format: "text"},
		Telemetry:            &Telemetry{Service: "olapcore"},
		Server:               &Server{GRPCAddr: ":7070", AdminAddr: "127.0.0.1:9090"},
		CatalogRPC:           &CatalogRPC{RPCTimeout: "3s"},
		MemberStore:          &MemberStore{DSN: "postgres://olap@db/olap", Table: "olap_member"},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	timeout, err := c.Timeout()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, timeout)
	match, err := c.Match()
	require.NoError(t, err)
	require.Equal(t, olap.MatchBefore, match)
	require.Equal(t, olap.NamingSSAS, c.Naming())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `query_timeout = `},
		{"unknown attribute", `cache_size = 10`},
		{"bad timeout", `query_timeout = "soon"`},
		{"bad match type", `match_type = "fuzzy"`},
		{"grpc without target", `reader = "grpc"`},
		{"postgres without dsn", `reader = "postgres"`},
		{"unknown reader", `reader = "ldap"`},
		{"undefined env", `memberstore { dsn = env.MISSING }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl", nil)
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Equal(t, olap.NamingLegacy, c.Naming())

	path := filepath.Join(t.TempDir(), "olapcore.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`catalog_dir = "cubes"`), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "cubes", c.CatalogDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSet(t *testing.T) {
	c := Default()
	require.NoError(t, c.Set("strict_validation", "true"))
	require.NoError(t, c.Set("server.admin_addr", ":1"))
	require.NoError(t, c.Set("catalog_rpc.target", "catalog:7070"))
	require.True(t, c.StrictValidation)
	require.Equal(t, ":1", c.Server.AdminAddr)
	require.Equal(t, "catalog:7070", c.CatalogRPC.Target)

	require.ErrorIs(t, c.Set("strict_validation", "maybe"), ErrInvalidConfig)
	require.ErrorIs(t, c.Set("nope", "1"), ErrInvalidConfig)
}

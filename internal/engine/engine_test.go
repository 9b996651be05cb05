package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/olapcore/internal/config"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
	"github.com/hanpama/olapcore/internal/resolver"
)

func newEngine(t *testing.T, set map[string]string) (*Engine, *resolver.MockReader) {
	t.Helper()
	cfg := config.Default()
	cfg.SSASCompatibleNaming = true
	for k, v := range set {
		require.NoError(t, cfg.Set(k, v))
	}
	cat, _ := olap.NewSampleCatalog(cfg.Naming())
	reader := resolver.NewMockReader(cat)
	eng, err := New(cfg, cat, reader)
	require.NoError(t, err)
	return eng, reader
}

func salesQuery(ids ...string) *query.Query {
	var exps []query.Expr
	for _, id := range ids {
		exps = append(exps, query.Id(id))
	}
	return &query.Query{Cube: "Sales", Axes: []*query.Axis{query.On(0, query.Set(exps...))}}
}

func TestResolveBindsQuery(t *testing.T) {
	eng, _ := newEngine(t, nil)
	stmt := eng.OpenStatement("bind")
	defer stmt.Close()

	q := salesQuery("[Product].[Food].[Dairy]", "[Product].[Meat]")
	res, err := stmt.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, execution.StateDone, res.State)
	require.Equal(t, 1, res.Map.Count(resolver.StatusResolved))

	args := q.Axes[0].Exp.(*query.Call).Args
	require.Equal(t, "[Product].[Food].[Dairy]", args[0].(*query.MemberExpr).Member.UniqueName())
	require.IsType(t, &query.NullMemberExpr{}, args[1])
}

func TestStrictPolicyRejectsUnknownMember(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{"strict_validation": "true"})
	stmt := eng.OpenStatement("strict")
	defer stmt.Close()

	res, err := stmt.Resolve(context.Background(), salesQuery("[Product].[Meat]"))
	var nf *resolver.MemberNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "Sales", nf.Cube)
	require.Equal(t, execution.StateError, res.State)

	eng, _ = newEngine(t, map[string]string{"strict_validation": "true", "ignore_invalid_members_during_query": "true"})
	stmt = eng.OpenStatement("lenient")
	defer stmt.Close()
	_, err = stmt.Resolve(context.Background(), salesQuery("[Product].[Meat]"))
	require.NoError(t, err)
}

func TestCancelBeforeResolve(t *testing.T) {
	eng, reader := newEngine(t, nil)
	stmt := eng.OpenStatement("cancel")
	defer stmt.Close()

	require.NoError(t, eng.Registry().Cancel(stmt.ID()))
	q := salesQuery("[Product].[Food]")
	res, err := stmt.Resolve(context.Background(), q)
	require.ErrorIs(t, err, execution.ErrCanceled)
	require.Equal(t, execution.StateCanceled, res.State)
	require.NotNil(t, res.Map)
	require.Empty(t, reader.GetCalls())
	// The query is left unbound.
	require.IsType(t, &query.IdExpr{}, q.Axes[0].Exp.(*query.Call).Args[0])

	// The statement can run again.
	res, err = stmt.Resolve(context.Background(), salesQuery("[Product].[Food]"))
	require.NoError(t, err)
	require.Equal(t, execution.StateDone, res.State)
}

func TestTimeout(t *testing.T) {
	eng, reader := newEngine(t, map[string]string{"query_timeout": "1ns"})
	reader.SetHook(func(ctx context.Context, call int, _ *olap.Member) error {
		<-ctx.Done()
		return nil
	})
	stmt := eng.OpenStatement("timeout")
	defer stmt.Close()

	res, err := stmt.Resolve(context.Background(), salesQuery("[Product].[Food].[Dairy]"))
	require.ErrorIs(t, err, execution.ErrTimeout)
	require.Equal(t, execution.StateTimeout, res.State)
}

func TestReaderErrorFailsExecution(t *testing.T) {
	eng, reader := newEngine(t, nil)
	boom := errors.New("backend down")
	reader.SetHook(func(context.Context, int, *olap.Member) error { return boom })
	stmt := eng.OpenStatement("fail")
	defer stmt.Close()

	res, err := stmt.Resolve(context.Background(), salesQuery("[Product].[Food]"))
	require.Same(t, boom, err)
	require.Equal(t, execution.StateError, res.State)
}

func TestUnknownCubeAndClose(t *testing.T) {
	eng, _ := newEngine(t, nil)
	stmt := eng.OpenStatement("close")
	require.Equal(t, 1, eng.Registry().Len())

	_, err := stmt.Resolve(context.Background(), &query.Query{Cube: "Warehouse"})
	require.ErrorIs(t, err, ErrUnknownCube)

	require.NoError(t, stmt.Close())
	require.Equal(t, 0, eng.Registry().Len())
	_, ok := eng.Lookup(stmt.ID())
	require.False(t, ok)
	require.ErrorIs(t, stmt.Close(), execution.ErrUnknownStatement)
}

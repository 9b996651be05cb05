package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

type entrySummary struct {
	Id      string
	Status  string
	Element string
}

func summarize(m *ResolutionMap) []entrySummary {
	var out []entrySummary
	for _, e := range m.Entries() {
		s := entrySummary{Id: e.Node.Id.String(), Status: e.Status.String()}
		if e.Element != nil {
			s.Element = e.Element.UniqueName()
		}
		out = append(out, s)
	}
	return out
}

func newFixture(t *testing.T, naming olap.Naming) (*MockReader, *olap.Cube) {
	t.Helper()
	cat, cube := olap.NewSampleCatalog(naming)
	return NewMockReader(cat), cube
}

func startExecution(t *testing.T) (*execution.Statement, *execution.Execution) {
	t.Helper()
	s := execution.NewStatement("test")
	e := s.NewExecution(context.Background(), 0)
	require.NoError(t, s.Start(e))
	t.Cleanup(func() { _ = s.End(e) })
	return s, e
}

func axisQuery(exps ...query.Expr) *query.Query {
	return &query.Query{Cube: "Sales", Axes: []*query.Axis{query.On(0, query.Set(exps...))}}
}

func TestFoodAndFiveSiblingsUseTwoLookups(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	q := axisQuery(
		query.Id("[Product].[Food]"),
		query.Id("[Product].[Food].[Baked Goods]"),
		query.Id("[Product].[Food].[Baking Goods]"),
		query.Id("[Product].[Food].[Breakfast Foods]"),
		query.Id("[Product].[Food].[Canned Foods]"),
		query.Id("[Product].[Food].[Dairy]"),
	)

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)

	wantCalls := []LookupCall{
		{Parent: "[Product].[All Products]", Names: []string{"Food"}},
		{Parent: "[Product].[Food]", Names: []string{"Baked Goods", "Baking Goods", "Breakfast Foods", "Canned Foods", "Dairy"}},
	}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}

	want := []entrySummary{
		{"[Product].[Food]", "resolved", "[Product].[Food]"},
		{"[Product].[Food].[Baked Goods]", "resolved", "[Product].[Food].[Baked Goods]"},
		{"[Product].[Food].[Baking Goods]", "resolved", "[Product].[Food].[Baking Goods]"},
		{"[Product].[Food].[Breakfast Foods]", "resolved", "[Product].[Food].[Breakfast Foods]"},
		{"[Product].[Food].[Canned Foods]", "resolved", "[Product].[Food].[Canned Foods]"},
		{"[Product].[Food].[Dairy]", "resolved", "[Product].[Food].[Dairy]"},
	}
	if diff := cmp.Diff(want, summarize(m)); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, Stats{Candidates: 6, Rounds: 2, Lookups: 2}, m.Stats)
}

func TestParentChildSiblingsShareOneLookup(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	q := axisQuery(
		query.Id("[Employees].[Sheri Nowmer].[Derrick Whelply]"),
		query.Id("[Employees].[Sheri Nowmer].[Michael Spence]"),
	)

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)

	wantCalls := []LookupCall{
		{Parent: "[Employees].[All Employees]", Names: []string{"Sheri Nowmer"}},
		{Parent: "[Employees].[Sheri Nowmer]", Names: []string{"Derrick Whelply", "Michael Spence"}},
	}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, m.Count(StatusResolved))
}

func TestNamingModeChangesNamesNotBatchShape(t *testing.T) {
	tests := []struct {
		naming  olap.Naming
		prefix  string
		allName string
		yearUN  string
	}{
		{olap.NamingSSAS, "[Time].[Weekly]", "[Time].[Weekly].[All Weeklys]", "[Time].[Weekly].[1997]"},
		{olap.NamingLegacy, "[Time.Weekly]", "[Time.Weekly].[All Time.Weeklys]", "[Time.Weekly].[1997]"},
	}
	for _, tt := range tests {
		t.Run(tt.naming.String(), func(t *testing.T) {
			reader, cube := newFixture(t, tt.naming)
			_, exec := startExecution(t)
			q := axisQuery(
				query.Id(tt.prefix+".[1997].[4]"),
				query.Id(tt.prefix+".[1997].[5]"),
				query.Id(tt.prefix+".[1997].[6]"),
			)

			m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
			require.NoError(t, err)

			wantCalls := []LookupCall{
				{Parent: tt.allName, Names: []string{"1997"}},
				{Parent: tt.yearUN, Names: []string{"4", "5", "6"}},
			}
			if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
				t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, tt.yearUN+".[5]", m.Entries()[1].Element.UniqueName())
		})
	}
}

func TestLevelAnchorIsNotLookedUp(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingLegacy)
	_, exec := startExecution(t)
	week := query.Id("[Time.Weekly].Week")
	q := axisQuery(
		query.Fn("Descendants", query.Id("CurrentMember"), week),
		query.Id("[Time.Weekly].[1997]"),
	)

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)

	wantCalls := []LookupCall{
		{Parent: "[Time.Weekly].[All Time.Weeklys]", Names: []string{"1997"}},
	}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
	_, ok := m.Lookup(week)
	require.False(t, ok, "level reference must not be a candidate")
}

func TestCancelAfterFirstRoundKeepsPartialResult(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	stmt, exec := startExecution(t)
	reader.SetHook(func(_ context.Context, call int, _ *olap.Member) error {
		if call == 1 {
			stmt.Cancel()
		}
		return nil
	})
	food := query.Id("[Product].[Food]")
	drink := query.Id("[Product].[Drink]")
	dairy := query.Id("[Product].[Food].[Dairy]")
	q := axisQuery(food, drink, dairy)

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.ErrorIs(t, err, execution.ErrCanceled)
	var notFound *MemberNotFoundError
	require.False(t, errors.As(err, &notFound))
	require.NotNil(t, m)

	require.Len(t, reader.GetCalls(), 1)
	want := []entrySummary{
		{"[Product].[Food]", "resolved", "[Product].[Food]"},
		{"[Product].[Drink]", "resolved", "[Product].[Drink]"},
		{"[Product].[Food].[Dairy]", "unresolved", ""},
	}
	if diff := cmp.Diff(want, summarize(m)); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestCanceledBeforeResolveIssuesNoLookup(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	stmt, exec := startExecution(t)
	stmt.Cancel()

	m, err := New(reader).Resolve(exec.Context(), exec, cube, axisQuery(query.Id("[Product].[Food]")))
	require.ErrorIs(t, err, execution.ErrCanceled)
	require.Empty(t, reader.GetCalls())
	require.Equal(t, []*query.IdExpr{m.Entries()[0].Node}, m.Unresolved())
}

func TestReaderErrorIsReturnedUnchanged(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	boom := errors.New("connection reset")
	reader.SetHook(func(_ context.Context, call int, _ *olap.Member) error {
		if call == 2 {
			return boom
		}
		return nil
	})
	q := axisQuery(query.Id("[Product].[Food]"), query.Id("[Product].[Food].[Dairy]"))

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.Same(t, boom, err)
	require.Equal(t, 1, m.Count(StatusResolved))
	require.Equal(t, 1, m.Count(StatusUnresolved))
	require.Len(t, reader.GetCalls(), 2)
}

func TestReaderErrorWinsOverConcurrentCancel(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	stmt, exec := startExecution(t)
	boom := errors.New("connection reset")
	reader.SetHook(func(_ context.Context, _ int, _ *olap.Member) error {
		stmt.Cancel()
		return boom
	})

	m, err := New(reader).Resolve(exec.Context(), exec, cube, axisQuery(query.Id("[Product].[Food]")))
	require.Same(t, boom, err)
	require.NotErrorIs(t, err, execution.ErrCanceled)
	require.Equal(t, 1, m.Count(StatusUnresolved))
}

func TestInterruptedLookupReportsCancel(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	stmt, exec := startExecution(t)
	reader.SetHook(func(ctx context.Context, _ int, _ *olap.Member) error {
		stmt.Cancel()
		return ctx.Err()
	})

	_, err := New(reader).Resolve(exec.Context(), exec, cube, axisQuery(query.Id("[Product].[Food]")))
	require.ErrorIs(t, err, execution.ErrCanceled)
}

func TestDeclaredFormulasAreNotCandidates(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	big := query.Id("[Product].[Food].[Big]")
	top := query.Id("[Top]")
	q := &query.Query{
		Cube: "Sales",
		Formulas: []*query.Formula{
			query.WithMember("[Product].[Food].[Big]", query.Lit(1)),
			query.WithSet("[Top]", query.Set(query.Id("[Product].[Drink]"))),
		},
		Axes: []*query.Axis{query.On(0, query.Set(big, top))},
	}

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	for _, n := range []*query.IdExpr{big, top} {
		_, ok := m.Lookup(n)
		require.False(t, ok, "%s must not be resolved here", n.Id)
	}
	wantCalls := []LookupCall{{Parent: "[Product].[All Products]", Names: []string{"Drink"}}}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSameNameFromManyNodesIsLookedUpOnce(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	a := query.Id("[Product].[Food]")
	b := query.Id("[product].FOOD")
	q := &query.Query{
		Cube:   "Sales",
		Axes:   []*query.Axis{query.On(0, query.Set(a)), query.On(1, query.Fn("Crossjoin", query.Set(b), query.Set(a)))},
		Slicer: query.Tuple(query.Id("[Product].[Food]")),
	}

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	wantCalls := []LookupCall{{Parent: "[Product].[All Products]", Names: []string{"Food"}}}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 3, m.Len(), "one entry per distinct node")
	require.Same(t, m.Member(a), m.Member(b))
}

func TestMissingAncestorDropsDeeperGroups(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	q := axisQuery(
		query.Id("[Product].[Meat].[Beef]"),
		query.Id("[Product].[Food].[Dairy]"),
	)

	m, err := New(reader).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	wantCalls := []LookupCall{
		{Parent: "[Product].[All Products]", Names: []string{"Meat", "Food"}},
		{Parent: "[Product].[Food]", Names: []string{"Dairy"}},
	}
	if diff := cmp.Diff(wantCalls, reader.GetCalls()); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, m.Stats.Dropped)
	want := []entrySummary{
		{"[Product].[Meat].[Beef]", "unresolved", ""},
		{"[Product].[Food].[Dairy]", "resolved", "[Product].[Food].[Dairy]"},
	}
	if diff := cmp.Diff(want, summarize(m)); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	q := axisQuery(
		query.Id("[Time].[1997].[Q1].[2]"),
		query.Id("[Time].[1997].[Q5]"),
		query.Id("[Product]"),
		query.Id("[Store Type].[Supermarket]"),
	)
	r := New(reader)

	first, err := r.Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	second, err := r.Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	if diff := cmp.Diff(summarize(first), summarize(second)); diff != "" {
		t.Fatalf("second run differs (-first +second):\n%s", diff)
	}

	// After binding, nothing is left to resolve.
	require.NoError(t, Bind(q, first, Policy{}))
	reader.Reset()
	third, err := r.Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	require.Zero(t, third.Len())
	require.Empty(t, reader.GetCalls())
}

func TestLookupsAreAttributedOnTheLocus(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	_, exec := startExecution(t)
	var frames [][]string
	reader.SetHook(func(ctx context.Context, _ int, _ *olap.Member) error {
		var names []string
		for _, f := range execution.LocusFrom(ctx).Frames() {
			names = append(names, f.Component+":"+f.Message)
		}
		frames = append(frames, names)
		return nil
	})

	_, err := New(reader, WithComponent("Batcher")).Resolve(exec.Context(), exec, cube, axisQuery(query.Id("[Product].[Drink]")))
	require.NoError(t, err)
	want := [][]string{{"Batcher:resolve Sales", "Batcher:lookup [Product].[All Products]"}}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("locus frames mismatch (-want +got):\n%s", diff)
	}
	require.Zero(t, exec.Locus().Depth())
}

func TestMatchTypeIsPassedThrough(t *testing.T) {
	reader, cube := newFixture(t, olap.NamingSSAS)
	m, err := New(reader, WithMatchType(olap.MatchBefore)).Resolve(context.Background(), nil, cube, axisQuery(query.Id("[Product].[Food].[Cheese]")))
	require.NoError(t, err)
	require.Equal(t, "[Product].[Food].[Canned Foods]", m.Entries()[0].Element.UniqueName())
	for _, c := range reader.GetCalls() {
		require.Equal(t, olap.MatchBefore, c.Match)
	}
}

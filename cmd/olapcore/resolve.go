package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/engine"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

func cmdResolve(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	cube := "Sales"
	var axes stringListFlag
	slicer := ""
	asJSON := false

	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	common.register(fs)
	fs.StringVar(&cube, "cube", cube, "Cube to resolve against")
	fs.Var(&axes, "axis", "Identifiers of one axis")
	fs.StringVar(&slicer, "slicer", slicer, "Identifiers of the slicer tuple")
	fs.BoolVar(&asJSON, "json", asJSON, "Print JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, resolveUsage)
		return err
	}
	if len(axes) == 0 && slicer == "" {
		fmt.Fprint(stderr, resolveUsage)
		return fmt.Errorf("at least one -axis or -slicer is required")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, newLogger(cfg, stderr))

	q := &query.Query{Cube: cube}
	for i, a := range axes {
		ids, err := splitIds(a)
		if err != nil {
			return fmt.Errorf("-axis %q: %w", a, err)
		}
		q.Axes = append(q.Axes, query.On(i, query.Set(ids...)))
	}
	if slicer != "" {
		ids, err := splitIds(slicer)
		if err != nil {
			return fmt.Errorf("-slicer %q: %w", slicer, err)
		}
		q.Slicer = query.Tuple(ids...)
	}

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	reader, closeReader, err := openReader(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer closeReader()
	eng, err := engine.New(cfg, cat, reader)
	if err != nil {
		return err
	}
	stmt := eng.OpenStatement("cli")
	defer func() { _ = stmt.Close() }()

	res, rerr := stmt.Resolve(ctx, q)
	if res == nil {
		return rerr
	}
	if err := printResult(stdout, res, asJSON); err != nil {
		return err
	}
	return rerr
}

// splitIds parses a ';'-separated identifier list.
func splitIds(s string) ([]query.Expr, error) {
	var out []query.Expr
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := olap.ParseIdentifier(part)
		if err != nil {
			return nil, err
		}
		out = append(out, &query.IdExpr{Id: id})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no identifiers")
	}
	return out, nil
}

type resultRow struct {
	Id      string `json:"id"`
	Status  string `json:"status"`
	Role    string `json:"role"`
	Element string `json:"element,omitempty"`
}

type resultSummary struct {
	State   string      `json:"state"`
	Rounds  int         `json:"rounds"`
	Lookups int         `json:"lookups"`
	Dropped int         `json:"dropped"`
	Entries []resultRow `json:"entries"`
}

func printResult(w io.Writer, res *engine.Result, asJSON bool) error {
	sum := resultSummary{State: res.State.String(), Entries: []resultRow{}}
	if m := res.Map; m != nil {
		sum.Rounds, sum.Lookups, sum.Dropped = m.Stats.Rounds, m.Stats.Lookups, m.Stats.Dropped
		for _, e := range m.Entries() {
			row := resultRow{Id: e.Node.Id.String(), Status: e.Status.String(), Role: e.Role.String()}
			if e.Element != nil {
				row.Element = e.Element.UniqueName()
			}
			sum.Entries = append(sum.Entries, row)
		}
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tROLE\tELEMENT")
	for _, r := range sum.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Id, r.Status, r.Role, r.Element)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "state=%s rounds=%d lookups=%d dropped=%d\n", sum.State, sum.Rounds, sum.Lookups, sum.Dropped)
	return err
}

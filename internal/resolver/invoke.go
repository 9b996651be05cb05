package resolver

import (
	"context"
	"time"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
)

// invoke issues the single bulk lookup for g under parent. It checks for
// cancellation first and never retries: a name missing from the result is
// not found for the rest of the run.
func (r *Resolver) invoke(ctx context.Context, exec *execution.Execution, g *Group, parent *olap.Member) (map[string]*olap.Member, error) {
	if exec != nil {
		if err := exec.CheckCancelOrTimeout(); err != nil {
			return nil, err
		}
	}

	names := append([]olap.NameSegment(nil), g.Names...)
	ev := events.LookupStart{
		ExecutionID: executionID(exec),
		Hierarchy:   g.Hierarchy.UniqueName(),
		Parent:      parent.UniqueName(),
		Depth:       g.Depth,
		Names:       len(names),
	}
	start := time.Now()
	eventbus.Publish(ctx, ev)

	var found map[olap.NameSegment]*olap.Member
	err := execution.Execute(ctx, exec, r.opts.Component, "lookup "+parent.UniqueName(), func(ctx context.Context) error {
		var err error
		found, err = r.reader.LookupChildrenByName(ctx, parent, names, r.opts.MatchType)
		return err
	})

	out := make(map[string]*olap.Member, len(found))
	if err == nil {
		for _, n := range names {
			if m := found[n]; m != nil {
				out[g.ChildKey(n)] = m
			}
		}
	}
	eventbus.Publish(ctx, events.LookupFinish{
		ExecutionID: ev.ExecutionID,
		Hierarchy:   ev.Hierarchy,
		Parent:      ev.Parent,
		Depth:       ev.Depth,
		Names:       ev.Names,
		Found:       len(out),
		Err:         err,
		Duration:    time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func executionID(e *execution.Execution) string {
	if e == nil {
		return ""
	}
	return e.ID.String()
}

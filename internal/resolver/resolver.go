package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/hanpama/olapcore/internal/ctxlog"
	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

// DefaultComponent is the locus component name lookups are attributed to.
const DefaultComponent = "IdBatchResolver"

// Options configures a Resolver.
type Options struct {
	MatchType olap.MatchType
	Component string
}

type Option func(*Options)

func WithMatchType(m olap.MatchType) Option { return func(o *Options) { o.MatchType = m } }
func WithComponent(name string) Option      { return func(o *Options) { o.Component = name } }

// Resolver batches member lookups for the identifiers of a query.
// It is safe for concurrent use; each Resolve call keeps its own state.
type Resolver struct {
	reader olap.SchemaReader
	opts   Options
}

// New creates a Resolver reading members through reader.
func New(reader olap.SchemaReader, opts ...Option) *Resolver {
	o := Options{MatchType: olap.MatchExact, Component: DefaultComponent}
	for _, f := range opts {
		f(&o)
	}
	return &Resolver{reader: reader, opts: o}
}

// Resolve binds the identifiers of q against cube with one bulk lookup per
// (hierarchy, parent) group, processing groups in increasing depth.
//
// exec may be nil, in which case the run cannot be canceled. Otherwise
// cancellation is checked before every round and every lookup; a canceled
// run returns execution.ErrCanceled (or an error wrapping ErrTimeout)
// together with the entries resolved so far. A reader error is returned
// unchanged, also with the partial map. The map is never nil.
func (r *Resolver) Resolve(ctx context.Context, exec *execution.Execution, cube *olap.Cube, q *query.Query) (*ResolutionMap, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)
	m := newResolutionMap(cube)

	sites := Walk(q, cube)
	cls := make([]Classification, len(sites))
	for i, s := range sites {
		cls[i] = Classify(cube, s)
	}
	rounds := BuildRounds(cls)
	m.Stats.Candidates = len(sites)

	eventbus.Publish(ctx, events.ResolveStart{
		ExecutionID: executionID(exec),
		Cube:        cube.Name,
		Candidates:  len(sites),
	})

	found := make(map[string]*olap.Member)
	err := execution.Execute(ctx, exec, r.opts.Component, "resolve "+cube.Name, func(ctx context.Context) error {
		for _, round := range rounds {
			if exec != nil {
				if err := exec.CheckCancelOrTimeout(); err != nil {
					logger.Debug("resolution stopped", "depth", round.Depth, "err", err)
					return err
				}
			}
			m.Stats.Rounds++
			for _, g := range round.Groups {
				parent := g.Hierarchy.AllMember
				if g.Depth > 0 {
					parent = found[g.Key.Parent]
				}
				if parent == nil {
					// The parent was not found in an earlier round; everything
					// below it stays unresolved.
					m.Stats.Dropped++
					continue
				}
				res, err := r.invoke(ctx, exec, g, parent)
				if err != nil {
					// A lookup interrupted by the execution's own context reports
					// the execution state; any other failure is returned as is.
					if exec != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
						if cerr := exec.CheckCancelOrTimeout(); cerr != nil {
							return cerr
						}
					}
					return err
				}
				m.Stats.Lookups++
				for k, v := range res {
					found[k] = v
				}
			}
			logger.Debug("resolution round",
				"depth", round.Depth,
				"groups", len(round.Groups),
				"lookups", m.Stats.Lookups)
		}
		return nil
	})

	for _, c := range cls {
		e := Entry{Node: c.Site.Node, Hierarchy: c.Hierarchy, Role: c.Site.Role, Reason: c.Reason}
		switch {
		case c.Eligible:
			if mem := found[pathKey(c.Hierarchy, c.Path)]; mem != nil {
				e.Status, e.Member, e.Element = StatusResolved, mem, mem
			} else {
				e.Status = StatusUnresolved
			}
		case c.Known != nil:
			e.Status, e.Element = StatusKnown, c.Known
			if mem, ok := c.Known.(*olap.Member); ok {
				e.Member = mem
			}
		default:
			// Left to the validator, which has lookups this resolver does not batch.
			continue
		}
		m.add(e)
	}

	logger.Debug("resolution finished",
		"cube", cube.Name,
		"candidates", len(sites),
		"rounds", m.Stats.Rounds,
		"lookups", m.Stats.Lookups,
		"resolved", m.Count(StatusResolved),
		"unresolved", m.Count(StatusUnresolved),
		"err", err)
	eventbus.Publish(ctx, events.ResolveFinish{
		ExecutionID: executionID(exec),
		Cube:        cube.Name,
		Rounds:      m.Stats.Rounds,
		Lookups:     m.Stats.Lookups,
		Resolved:    m.Count(StatusResolved),
		Unresolved:  m.Count(StatusUnresolved),
		Known:       m.Count(StatusKnown),
		Err:         err,
		Duration:    time.Since(start),
	})
	return m, err
}

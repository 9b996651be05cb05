// Package engine ties configuration, a member reader and the statement
// registry together. It is the entry point the CLI and the admin API use
// to resolve queries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hanpama/olapcore/internal/config"
	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
	"github.com/hanpama/olapcore/internal/resolver"
)

var ErrUnknownCube = errors.New("engine: unknown cube")

// Cubes supplies cube metadata by name. *olap.Catalog satisfies it.
type Cubes interface {
	Cube(name string) (*olap.Cube, bool)
}

// Engine opens statements against one set of cubes and one reader.
type Engine struct {
	cubes    Cubes
	resolver *resolver.Resolver
	registry *execution.Registry
	policy   resolver.Policy
	timeout  time.Duration
}

// New validates cfg and builds an engine.
func New(cfg *config.Config, cubes Cubes, reader olap.SchemaReader) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.Timeout()
	match, _ := cfg.Match()
	return &Engine{
		cubes:    cubes,
		resolver: resolver.New(reader, resolver.WithMatchType(match)),
		registry: execution.NewRegistry(),
		policy: resolver.Policy{
			Strict:                          cfg.StrictValidation,
			IgnoreInvalidMembers:            cfg.IgnoreInvalidMembers,
			IgnoreInvalidMembersDuringQuery: cfg.IgnoreInvalidMembersDuringQuery,
			DuringQuery:                     true,
		},
		timeout: timeout,
	}, nil
}

// Registry returns the arena of open statements.
func (e *Engine) Registry() *execution.Registry { return e.registry }

// Statement is an open statement. Close it to remove it from the registry.
type Statement struct {
	eng  *Engine
	stmt *execution.Statement
	id   execution.StatementID
}

// OpenStatement registers a new statement.
func (e *Engine) OpenStatement(label string) *Statement {
	s := execution.NewStatement(label)
	return &Statement{eng: e, stmt: s, id: e.registry.Register(s)}
}

// Lookup returns the open statement with id.
func (e *Engine) Lookup(id execution.StatementID) (*execution.Statement, bool) {
	return e.registry.Get(id)
}

func (s *Statement) ID() execution.StatementID { return s.id }

// Cancel cancels the running execution, or the next one if none runs.
func (s *Statement) Cancel() { s.stmt.Cancel() }

// Close deregisters the statement.
func (s *Statement) Close() error { return s.eng.registry.Deregister(s.id) }

// Result is the outcome of one Resolve call.
type Result struct {
	ExecutionID string
	State       execution.State
	Map         *resolver.ResolutionMap
	Duration    time.Duration
}

// Resolve runs one execution of the statement: identifiers of q are
// resolved in bulk and then bound in place according to the configured
// policy. On cancellation or timeout the partial result is returned with
// the error and q is left unbound.
func (s *Statement) Resolve(ctx context.Context, q *query.Query) (*Result, error) {
	cube, ok := s.eng.cubes.Cube(q.Cube)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCube, q.Cube)
	}
	exec := s.stmt.NewExecution(ctx, s.eng.timeout)
	if err := s.stmt.Start(exec); err != nil {
		return nil, err
	}
	res := &Result{ExecutionID: exec.ID.String()}
	defer func() {
		_ = s.stmt.End(exec)
		res.State = exec.State()
		res.Duration = time.Since(exec.Started())
	}()

	logger := ctxlog.FromContext(ctx).With("statement", s.id.String(), "execution", res.ExecutionID)
	m, err := s.eng.resolver.Resolve(ctxlog.WithLogger(exec.Context(), logger), exec, cube, q)
	res.Map = m
	if err != nil {
		if !errors.Is(err, execution.ErrCanceled) && !errors.Is(err, execution.ErrTimeout) {
			exec.Fail(err)
		}
		logger.Info("resolve stopped", "state", exec.State(), "error", err)
		return res, err
	}
	if err := resolver.Bind(q, m, s.eng.policy); err != nil {
		exec.Fail(err)
		return res, err
	}
	return res, nil
}

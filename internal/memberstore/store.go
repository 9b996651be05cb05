// Package memberstore reads cube members from a Postgres table.
//
// Each row is one member:
//
//	cube                text     cube name
//	parent_unique_name  text     parent's unique name, or the hierarchy's for top members
//	name                text
//	unique_name         text
//	ordinal             integer  position among siblings
//
// Unique names are stored in the naming mode of the cube that wrote them.
package memberstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/olap"
)

// DB is the subset of *pgxpool.Pool and *pgx.Conn the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var columns = []string{"cube", "parent_unique_name", "name", "unique_name", "ordinal"}

// Store is an olap.SchemaReader over a member table.
type Store struct {
	db    DB
	table pgx.Identifier
}

var _ olap.SchemaReader = (*Store)(nil)

func New(db DB, table string) *Store {
	return &Store{db: db, table: pgx.Identifier{table}}
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn, table string) (*Store, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool, table), pool, nil
}

// CreateTable creates the member table if it does not exist.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	cube text NOT NULL,
	parent_unique_name text NOT NULL,
	name text NOT NULL,
	unique_name text NOT NULL,
	ordinal integer NOT NULL,
	PRIMARY KEY (cube, unique_name)
)`, s.table.Sanitize()))
	if err != nil {
		return fmt.Errorf("create %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

type row struct {
	Name    string
	Ordinal int
}

// LookupChildrenByName loads the children of parent in one query and
// matches names against them.
func (s *Store) LookupChildrenByName(ctx context.Context, parent *olap.Member, names []olap.NameSegment, match olap.MatchType) (map[olap.NameSegment]*olap.Member, error) {
	if parent == nil || len(names) == 0 {
		return map[olap.NameSegment]*olap.Member{}, nil
	}
	h := parent.Hierarchy
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT name, ordinal FROM %s WHERE cube = $1 AND parent_unique_name = $2 ORDER BY ordinal`, s.table.Sanitize()),
		h.Dimension.Cube.Name, parent.UniqueName())
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", parent.UniqueName(), err)
	}
	recs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		var rec row
		err := r.Scan(&rec.Name, &rec.Ordinal)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan children of %s: %w", parent.UniqueName(), err)
	}
	children := make([]*olap.Member, 0, len(recs))
	for _, rec := range recs {
		m, err := h.NewMember(parent, rec.Name, rec.Ordinal)
		if err != nil {
			return nil, err
		}
		children = append(children, m)
	}
	return olap.MatchChildren(children, names, match), nil
}

// Seed copies every member of cube from cat into the table.
func (s *Store) Seed(ctx context.Context, cat *olap.Catalog, cube *olap.Cube) (int64, error) {
	var rows [][]any
	var walk func(h *olap.Hierarchy, parentUN string, ms []*olap.Member)
	walk = func(h *olap.Hierarchy, parentUN string, ms []*olap.Member) {
		for _, m := range ms {
			rows = append(rows, []any{cube.Name, parentUN, m.Name, m.UniqueName(), m.Ordinal})
			walk(h, m.UniqueName(), cat.Children(m))
		}
	}
	for _, h := range cube.Hierarchies() {
		parentUN := h.UniqueName()
		if h.AllMember != nil {
			parentUN = h.AllMember.UniqueName()
		}
		walk(h, parentUN, cat.Roots(h))
	}
	n, err := s.db.CopyFrom(ctx, s.table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", s.table.Sanitize(), err)
	}
	ctxlog.FromContext(ctx).Info("seeded members", "cube", cube.Name, "rows", n)
	return n, nil
}

package resolver

import (
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

// Group is one bulk lookup: a parent and the distinct child names wanted
// under it.
type Group struct {
	Key       BatchKey
	Depth     int
	Hierarchy *olap.Hierarchy
	// ParentPath is the path of the parent below the All member; empty at depth 0.
	ParentPath []olap.NameSegment
	// ParentName is the parent's unique name in source spelling.
	ParentName string
	// Names holds each child name once, in the spelling first seen.
	Names []olap.NameSegment
	// Nodes are the query nodes whose leaf is one of Names. Groups that only
	// resolve an ancestor for deeper groups have no nodes.
	Nodes []*query.IdExpr

	index map[string]int // folded name -> position in Names
}

// ChildKey is the folded unique name the child called name would carry.
func (g *Group) ChildKey(name olap.NameSegment) string {
	path := append(append([]olap.NameSegment(nil), g.ParentPath...), name)
	return pathKey(g.Hierarchy, path)
}

func (g *Group) addName(s olap.NameSegment) {
	k := s.Key()
	if _, ok := g.index[k]; ok {
		return
	}
	g.index[k] = len(g.Names)
	g.Names = append(g.Names, s)
}

// Round holds the groups at one depth. Every group's parent is either the
// All member (depth 0) or a member looked up in the previous round.
type Round struct {
	Depth  int
	Groups []*Group
}

// BuildRounds merges eligible classifications into groups and orders them
// by depth. Every ancestor on a candidate's path is scheduled too, so a
// deep reference such as [Time].[1997].[Q1].[1] yields one group per level
// even when no query node names [Time].[1997] directly. Within a round
// groups keep the order in which they were first seen.
func BuildRounds(cs []Classification) []Round {
	groups := make(map[BatchKey]*Group)
	var byDepth [][]*Group
	get := func(h *olap.Hierarchy, parentPath []olap.NameSegment) *Group {
		key := BatchKey{Hierarchy: olap.FoldName(h.UniqueName()), Parent: parentKey(h, parentPath)}
		if g, ok := groups[key]; ok {
			return g
		}
		depth := len(parentPath)
		g := &Group{
			Key:        key,
			Depth:      depth,
			Hierarchy:  h,
			ParentPath: append([]olap.NameSegment(nil), parentPath...),
			ParentName: parentName(h, parentPath),
			index:      make(map[string]int),
		}
		groups[key] = g
		for len(byDepth) <= depth {
			byDepth = append(byDepth, nil)
		}
		byDepth[depth] = append(byDepth[depth], g)
		return g
	}

	for _, c := range cs {
		if !c.Eligible {
			continue
		}
		for i := range c.Path {
			g := get(c.Hierarchy, c.Path[:i])
			g.addName(c.Path[i])
			if i == len(c.Path)-1 {
				g.Nodes = append(g.Nodes, c.Site.Node)
			}
		}
	}

	rounds := make([]Round, 0, len(byDepth))
	for depth, gs := range byDepth {
		if len(gs) == 0 {
			continue
		}
		rounds = append(rounds, Round{Depth: depth, Groups: gs})
	}
	return rounds
}

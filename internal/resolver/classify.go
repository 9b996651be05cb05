package resolver

import (
	"fmt"
	"strings"

	"github.com/hanpama/olapcore/internal/olap"
)

// Reason explains why a candidate is not batch eligible.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonNoMemberPath: the id names a dimension, hierarchy or All member
	// and needs no lookup.
	ReasonNoMemberPath
	// ReasonKeySegment: the member path uses &[key] segments.
	ReasonKeySegment
	// ReasonUnknownHierarchy: no hierarchy prefix matches.
	ReasonUnknownHierarchy
	// ReasonNoAllMember: the hierarchy has no All member to anchor depth 0.
	ReasonNoAllMember
	// ReasonSingleSegment: a lone segment that is not a dimension or hierarchy.
	ReasonSingleSegment
	// ReasonLevelQualified: the path starts with a level name, e.g.
	// [Time].[Year].[1997], or is a level reference such as [Time].[Year].
	ReasonLevelQualified
)

var reasonNames = [...]string{"", "no-member-path", "key-segment", "unknown-hierarchy", "no-all-member", "single-segment", "level-qualified"}

func (r Reason) String() string {
	if int(r) >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// BatchKey groups candidates that share a hierarchy and a parent. Both
// parts are case folded.
type BatchKey struct {
	Hierarchy string
	Parent    string
}

// Classification is the outcome of classifying one candidate.
type Classification struct {
	Site     CandidateSite
	Eligible bool
	Reason   Reason

	Hierarchy *olap.Hierarchy
	// Path is the member path below the All member, leaf last.
	Path []olap.NameSegment
	Key  BatchKey
	// Known is the element an ineligible id denotes without a lookup, if any.
	Known olap.Element
}

// Leaf returns the name to look up.
func (c Classification) Leaf() olap.NameSegment { return c.Path[len(c.Path)-1] }

// Depth is the number of ancestors below the All member, 0 for top members.
func (c Classification) Depth() int { return len(c.Path) - 1 }

// Classify splits the candidate's id into a hierarchy prefix and a member
// path and computes its batch key.
func Classify(cube *olap.Cube, site CandidateSite) Classification {
	c := Classification{Site: site}
	id := site.Node.Id
	h, n := splitHierarchy(cube, id)
	if h == nil {
		if id.Len() == 1 {
			c.Reason = ReasonSingleSegment
		} else {
			c.Reason = ReasonUnknownHierarchy
		}
		return c
	}
	c.Hierarchy = h
	suffix := id.Suffix(n)
	for _, s := range suffix {
		if s.Quoting == olap.Key {
			c.Reason = ReasonKeySegment
			return c
		}
	}

	sawAll := false
	if len(suffix) > 0 && h.IsAllMemberName(suffix[0]) {
		suffix = suffix[1:]
		sawAll = true
	}
	if len(suffix) == 0 {
		c.Reason = ReasonNoMemberPath
		if sawAll {
			c.Known = h.AllMember
		} else if n == 1 && !h.IsNamed() && len(h.Dimension.Hierarchies) > 1 {
			c.Known = h.Dimension
		} else {
			c.Known = h
		}
		return c
	}
	if h.LookupLevel(suffix[0]) != nil && !sawAll {
		c.Reason = ReasonLevelQualified
		return c
	}
	if h.AllMember == nil {
		c.Reason = ReasonNoAllMember
		return c
	}

	c.Eligible = true
	c.Path = suffix
	c.Key = BatchKey{
		Hierarchy: olap.FoldName(h.UniqueName()),
		Parent:    parentKey(h, suffix[:len(suffix)-1]),
	}
	return c
}

// splitHierarchy finds the hierarchy an id is qualified by and the number
// of segments that qualify it.
//
// Precedence, first match wins:
//  1. [Dim].[Hier] where Hier is a hierarchy of Dim
//  2. [Dim], meaning Dim's default hierarchy
//  3. [Dim.Hier] as one dotted segment, legacy naming only
//
// A dimension whose own name contains a dot therefore shadows a dotted
// hierarchy reference of the same spelling.
func splitHierarchy(cube *olap.Cube, id olap.Id) (*olap.Hierarchy, int) {
	first := id.At(0)
	if first.Quoting == olap.Key {
		return nil, 0
	}
	if d := cube.LookupDimension(first); d != nil {
		if id.Len() >= 2 && id.At(1).Quoting != olap.Key {
			if h := d.LookupHierarchy(id.At(1)); h != nil {
				return h, 2
			}
		}
		if h := d.DefaultHierarchy(); h != nil {
			return h, 1
		}
		return nil, 0
	}
	if cube.Naming == olap.NamingLegacy {
		if h := cube.LookupHierarchyByLegacyName(first); h != nil {
			return h, 1
		}
	}
	return nil, 0
}

// pathKey is the folded unique name a member at path would carry.
func pathKey(h *olap.Hierarchy, path []olap.NameSegment) string {
	var b strings.Builder
	b.WriteString(olap.FoldName(h.UniqueName()))
	for _, s := range path {
		b.WriteByte('.')
		b.WriteString(olap.Quote(s.Key()))
	}
	return b.String()
}

// parentKey is the folded unique name of the parent of the member at a
// path whose ancestors are parentPath.
func parentKey(h *olap.Hierarchy, parentPath []olap.NameSegment) string {
	if len(parentPath) == 0 {
		return olap.FoldName(h.AllMember.UniqueName())
	}
	return pathKey(h, parentPath)
}

// parentName is parentKey in its original spelling, for diagnostics.
func parentName(h *olap.Hierarchy, parentPath []olap.NameSegment) string {
	if len(parentPath) == 0 {
		return h.AllMember.UniqueName()
	}
	var b strings.Builder
	b.WriteString(h.UniqueName())
	for _, s := range parentPath {
		b.WriteByte('.')
		b.WriteString(olap.Quote(s.Name))
	}
	return b.String()
}

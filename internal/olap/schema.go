package olap

import (
	"fmt"
	"strings"
)

// Naming selects how hierarchy and All member unique names are spelled.
type Naming int

const (
	// NamingLegacy folds a named hierarchy into one dotted segment: [Time.Weekly].
	NamingLegacy Naming = iota
	// NamingSSAS keeps dimension and hierarchy as two segments: [Time].[Weekly].
	NamingSSAS
)

func (n Naming) String() string {
	if n == NamingSSAS {
		return "ssas"
	}
	return "legacy"
}

// Element is any schema object with a unique name.
type Element interface {
	UniqueName() string
}

// Cube is the metadata root a query runs against.
type Cube struct {
	Name       string
	Naming     Naming
	Dimensions []*Dimension
}

// Dimension groups one or more hierarchies.
type Dimension struct {
	Name        string
	Cube        *Cube
	Hierarchies []*Hierarchy
}

// Hierarchy is a rooted tree of members organised in levels.
// A hierarchy whose Name equals its dimension's name is the default hierarchy.
type Hierarchy struct {
	Name        string
	Dimension   *Dimension
	Levels      []*Level
	AllMember   *Member // nil when the hierarchy has no All member
	ParentChild bool

	allLevel *Level
}

// Level groups the members at one depth.
type Level struct {
	Name      string
	Hierarchy *Hierarchy
	Depth     int
}

// Member is a resolved schema node.
type Member struct {
	Name      string
	Parent    *Member // nil for the All member and for top members of a hierarchy without one
	Level     *Level
	Hierarchy *Hierarchy
	Depth     int
	Ordinal   int

	uniqueName string
}

// HierarchyOptions configures a hierarchy added with AddHierarchy.
type HierarchyOptions struct {
	HasAll        bool
	AllMemberName string // defaults to "All <name>s"
	AllLevelName  string // defaults to "(All)"
	ParentChild   bool
}

// NewCube creates an empty cube.
func NewCube(name string, naming Naming) *Cube {
	return &Cube{Name: name, Naming: naming}
}

// AddDimension appends a dimension to c.
func (c *Cube) AddDimension(name string) *Dimension {
	d := &Dimension{Name: name, Cube: c}
	c.Dimensions = append(c.Dimensions, d)
	return d
}

// AddHierarchy appends a hierarchy. An empty name declares the default hierarchy.
func (d *Dimension) AddHierarchy(name string, opts HierarchyOptions) *Hierarchy {
	if name == "" {
		name = d.Name
	}
	h := &Hierarchy{Name: name, Dimension: d, ParentChild: opts.ParentChild}
	d.Hierarchies = append(d.Hierarchies, h)
	if opts.HasAll {
		levelName := opts.AllLevelName
		if levelName == "" {
			levelName = "(All)"
		}
		h.allLevel = h.AddLevel(levelName)
		allName := opts.AllMemberName
		if allName == "" {
			allName = "All " + h.fullName() + "s"
		}
		h.AllMember = &Member{
			Name:       allName,
			Level:      h.allLevel,
			Hierarchy:  h,
			uniqueName: h.UniqueName() + "." + Quote(allName),
		}
	}
	return h
}

// AddLevel appends a level below the existing ones.
func (h *Hierarchy) AddLevel(name string) *Level {
	l := &Level{Name: name, Hierarchy: h, Depth: len(h.Levels)}
	h.Levels = append(h.Levels, l)
	return l
}

// NewMember creates a member of h under parent. A nil parent places the
// member at the top of the hierarchy, below the All member if there is one.
// The member is not registered with any reader.
func (h *Hierarchy) NewMember(parent *Member, name string, ordinal int) (*Member, error) {
	if parent == nil {
		parent = h.AllMember
	}
	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}
	level, err := h.levelAt(depth)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at depth %d", err, Quote(name), depth)
	}
	var un string
	if parent == nil || parent == h.AllMember {
		un = h.UniqueName() + "." + Quote(name)
	} else {
		un = parent.UniqueName() + "." + Quote(name)
	}
	return &Member{
		Name:       name,
		Parent:     parent,
		Level:      level,
		Hierarchy:  h,
		Depth:      depth,
		Ordinal:    ordinal,
		uniqueName: un,
	}, nil
}

func (h *Hierarchy) levelAt(depth int) (*Level, error) {
	if h.ParentChild {
		// Every non-All member of a parent-child hierarchy sits on the one recursive level.
		for _, l := range h.Levels {
			if l != h.allLevel {
				return l, nil
			}
		}
		return nil, ErrLevelDepth
	}
	if depth >= len(h.Levels) {
		return nil, ErrLevelDepth
	}
	return h.Levels[depth], nil
}

// IsNamed reports whether h is addressed by its own name rather than the dimension's.
func (h *Hierarchy) IsNamed() bool { return h.Name != h.Dimension.Name }

func (h *Hierarchy) naming() Naming {
	if h.Dimension == nil || h.Dimension.Cube == nil {
		return NamingLegacy
	}
	return h.Dimension.Cube.Naming
}

// fullName is the name used inside the default All member name.
func (h *Hierarchy) fullName() string {
	if h.IsNamed() && h.naming() == NamingLegacy {
		return h.Dimension.Name + "." + h.Name
	}
	return h.Name
}

// UniqueName returns [Dim], [Dim].[Hier] or [Dim.Hier] depending on naming.
func (h *Hierarchy) UniqueName() string {
	if !h.IsNamed() {
		return Quote(h.Dimension.Name)
	}
	if h.naming() == NamingSSAS {
		return Quote(h.Dimension.Name) + "." + Quote(h.Name)
	}
	return Quote(h.Dimension.Name + "." + h.Name)
}

// LookupLevel finds a level by name. The All level is included.
func (h *Hierarchy) LookupLevel(seg NameSegment) *Level {
	for _, l := range h.Levels {
		if FoldName(l.Name) == seg.Key() {
			return l
		}
	}
	return nil
}

// IsAllMemberName reports whether seg names h's All member.
func (h *Hierarchy) IsAllMemberName(seg NameSegment) bool {
	return h.AllMember != nil && FoldName(h.AllMember.Name) == seg.Key()
}

func (d *Dimension) UniqueName() string { return Quote(d.Name) }

// LookupHierarchy finds a hierarchy of d by name.
func (d *Dimension) LookupHierarchy(seg NameSegment) *Hierarchy {
	for _, h := range d.Hierarchies {
		if FoldName(h.Name) == seg.Key() {
			return h
		}
	}
	return nil
}

// DefaultHierarchy returns the hierarchy named like d, else the first one.
func (d *Dimension) DefaultHierarchy() *Hierarchy {
	for _, h := range d.Hierarchies {
		if !h.IsNamed() {
			return h
		}
	}
	if len(d.Hierarchies) > 0 {
		return d.Hierarchies[0]
	}
	return nil
}

func (l *Level) UniqueName() string { return l.Hierarchy.UniqueName() + "." + Quote(l.Name) }

func (m *Member) UniqueName() string { return m.uniqueName }

// IsAll reports whether m is its hierarchy's All member.
func (m *Member) IsAll() bool { return m.Hierarchy != nil && m.Hierarchy.AllMember == m }

func (m *Member) String() string { return m.uniqueName }

// LookupDimension finds a dimension by name.
func (c *Cube) LookupDimension(seg NameSegment) *Dimension {
	for _, d := range c.Dimensions {
		if FoldName(d.Name) == seg.Key() {
			return d
		}
	}
	return nil
}

// LookupHierarchyByLegacyName finds a named hierarchy written as one dotted
// segment, e.g. [Time.Weekly].
func (c *Cube) LookupHierarchyByLegacyName(seg NameSegment) *Hierarchy {
	if !strings.Contains(seg.Name, ".") {
		return nil
	}
	key := seg.Key()
	for _, d := range c.Dimensions {
		for _, h := range d.Hierarchies {
			if h.IsNamed() && FoldName(d.Name+"."+h.Name) == key {
				return h
			}
		}
	}
	return nil
}

// LookupHierarchyByUniqueName finds a hierarchy by its unique name.
func (c *Cube) LookupHierarchyByUniqueName(un string) *Hierarchy {
	key := FoldName(un)
	for _, d := range c.Dimensions {
		for _, h := range d.Hierarchies {
			if FoldName(h.UniqueName()) == key {
				return h
			}
		}
	}
	return nil
}

// Hierarchies lists every hierarchy of c in declaration order.
func (c *Cube) Hierarchies() []*Hierarchy {
	var out []*Hierarchy
	for _, d := range c.Dimensions {
		out = append(out, d.Hierarchies...)
	}
	return out
}

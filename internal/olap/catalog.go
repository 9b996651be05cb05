package olap

import (
	"context"
	"fmt"
	"sync"
)

// Catalog is an in-memory SchemaReader holding cubes and their member trees.
type Catalog struct {
	mu       sync.RWMutex
	cubes    map[string]*Cube
	order    []*Cube
	children map[string][]*Member // cube-qualified parent key -> ordered children
	members  map[string]*Member   // cube-qualified member key -> member
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		cubes:    make(map[string]*Cube),
		children: make(map[string][]*Member),
		members:  make(map[string]*Member),
	}
}

var _ SchemaReader = (*Catalog)(nil)

// AddCube registers cube. Cube names are unique ignoring case.
func (c *Catalog) AddCube(cube *Cube) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := FoldName(cube.Name)
	if _, ok := c.cubes[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCube, cube.Name)
	}
	c.cubes[key] = cube
	c.order = append(c.order, cube)
	return nil
}

// Cube returns the cube with the given name.
func (c *Catalog) Cube(name string) (*Cube, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cube, ok := c.cubes[FoldName(name)]
	return cube, ok
}

// Cubes lists cubes in registration order.
func (c *Catalog) Cubes() []*Cube {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Cube(nil), c.order...)
}

// AddMember creates and registers a member of h below parent.
func (c *Catalog) AddMember(h *Hierarchy, parent *Member, name string) (*Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := childrenKey(h, parent)
	siblings := c.children[key]
	folded := FoldName(name)
	for _, s := range siblings {
		if FoldName(s.Name) == folded {
			return nil, fmt.Errorf("%w: %s under %s", ErrDuplicateMember, Quote(name), key)
		}
	}
	m, err := h.NewMember(parent, name, len(siblings))
	if err != nil {
		return nil, err
	}
	c.children[key] = append(siblings, m)
	c.members[memberKey(h, m.UniqueName())] = m
	return m, nil
}

// Children returns the ordered children of parent.
func (c *Catalog) Children(parent *Member) []*Member {
	if parent == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Member(nil), c.children[childrenKey(parent.Hierarchy, parent)]...)
}

// Roots returns the ordered top members of h, below its All member if it has one.
func (c *Catalog) Roots(h *Hierarchy) []*Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Member(nil), c.children[childrenKey(h, nil)]...)
}

// LookupChildrenByName implements SchemaReader.
func (c *Catalog) LookupChildrenByName(ctx context.Context, parent *Member, names []NameSegment, match MatchType) (map[NameSegment]*Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return MatchChildren(c.Children(parent), names, match), nil
}

// Member finds a member of cube by unique name. All members are found
// without being registered.
func (c *Catalog) Member(cube *Cube, uniqueName string) (*Member, bool) {
	key := FoldName(uniqueName)
	for _, h := range cube.Hierarchies() {
		if h.AllMember != nil && FoldName(h.AllMember.UniqueName()) == key {
			return h.AllMember, true
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.members[FoldName(cube.Name)+"/"+key]
	return m, ok
}

func childrenKey(h *Hierarchy, parent *Member) string {
	if parent == nil {
		parent = h.AllMember
	}
	if parent == nil {
		return memberKey(h, h.UniqueName())
	}
	return memberKey(h, parent.UniqueName())
}

// memberKey qualifies a unique name by cube so that cubes sharing
// dimension names keep separate member trees.
func memberKey(h *Hierarchy, uniqueName string) string {
	cube := ""
	if h.Dimension != nil && h.Dimension.Cube != nil {
		cube = h.Dimension.Cube.Name
	}
	return FoldName(cube) + "/" + FoldName(uniqueName)
}

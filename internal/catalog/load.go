package catalog

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/olap"
)

// hclFile is the top-level structure of a cube definition file.
type hclFile struct {
	Cubes []*hclCube `hcl:"cube,block"`
}

type hclCube struct {
	Name       string          `hcl:"name,label"`
	Dimensions []*hclDimension `hcl:"dimension,block"`
}

type hclDimension struct {
	Name        string          `hcl:"name,label"`
	Hierarchies []*hclHierarchy `hcl:"hierarchy,block"`
}

type hclHierarchy struct {
	// Name is empty for the dimension's default hierarchy.
	Name          string       `hcl:"name,optional"`
	HasAll        *bool        `hcl:"has_all,optional"`
	AllMemberName string       `hcl:"all_member_name,optional"`
	AllLevelName  string       `hcl:"all_level_name,optional"`
	ParentChild   bool         `hcl:"parent_child,optional"`
	Levels        []string     `hcl:"levels"`
	Members       []*hclMember `hcl:"member,block"`
}

type hclMember struct {
	Name    string       `hcl:"name,label"`
	Members []*hclMember `hcl:"member,block"`
}

// Load builds a catalog from every source d lists. All cubes share naming.
func Load(ctx context.Context, d Discovery, naming olap.Naming) (*olap.Catalog, error) {
	logger := ctxlog.FromContext(ctx)
	sources, err := d.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	cat := olap.NewCatalog()
	parser := hclparse.NewParser()
	for _, src := range sources {
		content, err := d.ReadSource(ctx, src.Name)
		if err != nil {
			return nil, err
		}
		f, diags := parser.ParseHCL(content, src.FilePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", src.FilePath, diags)
		}
		var parsed hclFile
		if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode catalog file %s: %w", src.FilePath, diags)
		}
		for _, c := range parsed.Cubes {
			if err := addCube(cat, c, naming); err != nil {
				return nil, fmt.Errorf("%s: cube %q: %w", src.FilePath, c.Name, err)
			}
			logger.Debug("loaded cube", "cube", c.Name, "file", src.FilePath)
		}
	}
	if len(sources) == 0 {
		logger.Warn("no catalog files found")
	}
	return cat, nil
}

// LoadDir loads every .hcl file below dir.
func LoadDir(ctx context.Context, dir string, naming olap.Naming) (*olap.Catalog, error) {
	d, err := NewFileSystemDiscovery(ctx, dir)
	if err != nil {
		return nil, err
	}
	return Load(ctx, d, naming)
}

func addCube(cat *olap.Catalog, c *hclCube, naming olap.Naming) error {
	cube := olap.NewCube(c.Name, naming)
	type pending struct {
		h       *olap.Hierarchy
		members []*hclMember
	}
	var todo []pending
	for _, d := range c.Dimensions {
		dim := cube.AddDimension(d.Name)
		if len(d.Hierarchies) == 0 {
			return fmt.Errorf("dimension %q has no hierarchy", d.Name)
		}
		for _, h := range d.Hierarchies {
			hasAll := h.HasAll == nil || *h.HasAll
			hier := dim.AddHierarchy(h.Name, olap.HierarchyOptions{
				HasAll:        hasAll,
				AllMemberName: h.AllMemberName,
				AllLevelName:  h.AllLevelName,
				ParentChild:   h.ParentChild,
			})
			for _, l := range h.Levels {
				hier.AddLevel(l)
			}
			todo = append(todo, pending{hier, h.Members})
		}
	}
	// Members are registered once the cube is in the catalog so that
	// duplicate cube names fail before any member is added.
	if err := cat.AddCube(cube); err != nil {
		return err
	}
	for _, p := range todo {
		if err := addMembers(cat, p.h, nil, p.members); err != nil {
			return err
		}
	}
	return nil
}

func addMembers(cat *olap.Catalog, h *olap.Hierarchy, parent *olap.Member, ms []*hclMember) error {
	for _, m := range ms {
		member, err := cat.AddMember(h, parent, m.Name)
		if err != nil {
			return err
		}
		if err := addMembers(cat, h, member, m.Members); err != nil {
			return err
		}
	}
	return nil
}

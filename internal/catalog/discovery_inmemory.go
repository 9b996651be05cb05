package catalog

import (
	"context"
	"fmt"
)

// InMemoryDiscovery serves cube definitions held in memory. Sources are
// listed in the order given.
type InMemoryDiscovery struct {
	sources  []*Source
	contents map[string]string
}

func NewInMemoryDiscovery(files map[string]string, order ...string) *InMemoryDiscovery {
	d := &InMemoryDiscovery{contents: make(map[string]string)}
	for _, name := range order {
		d.sources = append(d.sources, &Source{Name: name, FilePath: name + ".hcl"})
		d.contents[name] = files[name]
	}
	return d
}

func (d *InMemoryDiscovery) ListSources(ctx context.Context) ([]*Source, error) {
	return d.sources, nil
}

func (d *InMemoryDiscovery) ReadSource(ctx context.Context, name string) ([]byte, error) {
	c, ok := d.contents[name]
	if !ok {
		return nil, fmt.Errorf("catalog source %q not found", name)
	}
	return []byte(c), nil
}

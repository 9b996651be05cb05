package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemDiscovery finds .hcl cube files below a root directory.
type FileSystemDiscovery struct {
	paths   map[string]string
	sources []*Source
}

// NewFileSystemDiscovery walks rootDir for .hcl files. A source is named
// after its path relative to rootDir, without the extension.
func NewFileSystemDiscovery(ctx context.Context, rootDir string) (*FileSystemDiscovery, error) {
	d := &FileSystemDiscovery{paths: make(map[string]string)}
	err := filepath.WalkDir(rootDir, func(path string, e os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".hcl" {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), ".hcl")
		d.paths[name] = path
		d.sources = append(d.sources, &Source{Name: name, FilePath: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory %q: %w", rootDir, err)
	}
	sort.Slice(d.sources, func(i, j int) bool { return d.sources[i].Name < d.sources[j].Name })
	return d, nil
}

// ListSources returns the discovered files ordered by name.
func (d *FileSystemDiscovery) ListSources(ctx context.Context) ([]*Source, error) {
	return append([]*Source(nil), d.sources...), nil
}

// ReadSource reads the content of a discovered file.
func (d *FileSystemDiscovery) ReadSource(ctx context.Context, name string) ([]byte, error) {
	fp, ok := d.paths[name]
	if !ok {
		return nil, fmt.Errorf("catalog source %q not found", name)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog source %q: %w", name, err)
	}
	return content, nil
}

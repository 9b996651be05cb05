package catalog

import (
	"context"
)

// Source identifies one cube definition file.
type Source struct {
	Name     string
	FilePath string
}

// Discovery lists cube definition files and reads their content.
type Discovery interface {
	ListSources(ctx context.Context) ([]*Source, error)
	ReadSource(ctx context.Context, name string) ([]byte, error)
}

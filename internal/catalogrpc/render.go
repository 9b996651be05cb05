package catalogrpc

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render writes the catalog service definition as .proto source.
func Render(w io.Writer) error {
	d, err := Describe()
	if err != nil {
		return err
	}
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(d.File, w)
}

// RenderDir writes the .proto file below outDir at FilePath.
func RenderDir(outDir string) error {
	fp := filepath.Join(outDir, filepath.FromSlash(FilePath))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

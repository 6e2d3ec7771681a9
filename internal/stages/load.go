package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowgame/pkg/schema"
)

// LoadFile loads a stage pack by extension: .json or .hcl. A directory is
// loaded as a set of HCL files. An empty path yields the builtin catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "stage pack %s not found", path).WithCause(err)
	}
	if info.IsDir() {
		return LoadHCL(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open stage pack: %w", err)
		}
		defer f.Close()
		return LoadJSON(f)
	case ".hcl":
		return LoadHCL(path)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeParse,
			"unsupported stage pack format %q: use .json or .hcl", filepath.Ext(path))
	}
}

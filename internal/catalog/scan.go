package catalog

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/dbsync/internal/utils"
)

// DefaultScanPattern selects the load scripts searched by Scan.
const DefaultScanPattern = "**/*.sql"

// referencePattern matches a data folder reference up to the closing quote or
// the first whitespace.
var referencePattern = regexp.MustCompile(regexp.QuoteMeta(utils.DataFolderPlaceholder) + `[^'"\s;,)]+`)

// Scan collects the data folder references in the load scripts below root.
// Files are visited in directory walk order and references kept in order of
// first appearance.
func Scan(root, pattern string) (*Catalog, error) {
	if pattern == "" {
		pattern = DefaultScanPattern
	}
	dir, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	return ScanFS(os.DirFS(dir), pattern)
}

// ScanFS is Scan over an arbitrary filesystem.
func ScanFS(fsys fs.FS, pattern string) (*Catalog, error) {
	files, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("catalog: scan %q: %w", pattern, err)
	}

	var refs []string
	for _, name := range files {
		found, err := scanFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan %s: %w", name, err)
		}
		refs = append(refs, found...)
	}

	c := New(refs...)
	if c.Len() == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

func scanFile(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var refs []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		refs = append(refs, referencePattern.FindAllString(scanner.Text(), -1)...)
	}
	return refs, scanner.Err()
}

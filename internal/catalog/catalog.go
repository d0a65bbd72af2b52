// Package catalog holds the ordered list of datasource descriptors a build
// needs. A descriptor is a path template that may contain the {data_folder}
// placeholder, for example "{data_folder}/ref/lookup.csv".
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

var ErrEmpty = errors.New("catalog has no datasources")

// Format is the on-disk encoding of a catalog file.
type Format int

const (
	// FormatText has one descriptor per line. Blank lines and lines starting
	// with # are ignored.
	FormatText Format = iota
	// FormatYAML is a mapping with a `datasources` sequence.
	FormatYAML
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Catalog is an ordered, duplicate free list of descriptors.
type Catalog struct {
	descriptors []string
}

// New returns a catalog of descriptors in order of first occurrence.
func New(descriptors ...string) *Catalog {
	seen := mapset.NewThreadUnsafeSet[string]()
	c := &Catalog{}
	for _, d := range descriptors {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if seen.Add(d) {
			c.descriptors = append(c.descriptors, d)
		}
	}
	return c
}

// Descriptors returns a copy of the descriptors in catalog order.
func (c *Catalog) Descriptors() []string {
	return append([]string(nil), c.descriptors...)
}

func (c *Catalog) Len() int {
	return len(c.descriptors)
}

type yamlCatalog struct {
	Datasources []string `yaml:"datasources"`
}

// Load reads a catalog file. The format is chosen by extension.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog from r.
func Parse(r io.Reader, format Format) (*Catalog, error) {
	var descriptors []string

	switch format {
	case FormatYAML:
		var doc yamlCatalog
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		descriptors = doc.Datasources

	default:
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			descriptors = append(descriptors, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	c := New(descriptors...)
	if c.Len() == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

// Filter keeps the descriptors matching any of patterns. No patterns keeps
// everything.
func (c *Catalog) Filter(patterns ...string) (*Catalog, error) {
	if len(patterns) == 0 {
		return c, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("catalog: invalid pattern %q", p)
		}
	}

	filtered := &Catalog{}
	for _, d := range c.descriptors {
		for _, p := range patterns {
			if doublestar.MatchUnvalidated(p, d) {
				filtered.descriptors = append(filtered.descriptors, d)
				break
			}
		}
	}
	return filtered, nil
}

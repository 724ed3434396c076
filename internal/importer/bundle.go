// Package importer seeds and updates the remote catalog collections from
// bundled JSON data. A content-checksum gate plus a dry-run diff keeps
// unchanged sections from producing any remote traffic; writes are chunked
// and retried so a transient failure can be re-run safely.
package importer

import (
	"encoding/json"
	"fmt"
	"io/fs"

	"shopsync/internal/remote"
)

// Section names one bundle file / remote collection pair.
type Section string

const (
	SectionBrands     Section = "brands"
	SectionCategories Section = "categories"
	SectionProducts   Section = "products"
)

// AllSections lists the sections in import order: brands and categories
// before products, so product references resolve.
var AllSections = []Section{SectionBrands, SectionCategories, SectionProducts}

// FileName is the bundle resource name of the section.
func (s Section) FileName() string { return string(s) + ".json" }

// ChecksumKey is the namespace key under which the section's last imported
// hash is stored.
func (s Section) ChecksumKey() string { return "import." + string(s) }

// BundleSource loads named bundle resources. Raw bytes feed the checksum,
// the decoded array feeds the diff and write phases.
type BundleSource interface {
	LoadBytes(name string) ([]byte, error)
}

// FSBundle reads bundle resources from an fs.FS (directory or embedded).
type FSBundle struct {
	FS fs.FS
}

func (b FSBundle) LoadBytes(name string) ([]byte, error) {
	data, err := fs.ReadFile(b.FS, name)
	if err != nil {
		return nil, fmt.Errorf("bundle resource %q: %w", name, err)
	}
	return data, nil
}

// loadSection reads and decodes one section's bundle file. Decode failures
// are fatal to the run and name the offending file.
func loadSection(src BundleSource, s Section) ([]byte, []remote.Document, error) {
	raw, err := src.LoadBytes(s.FileName())
	if err != nil {
		return nil, nil, err
	}
	var docs []remote.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, nil, fmt.Errorf("bundle resource %q: decode: %w", s.FileName(), err)
	}
	for i, d := range docs {
		if remote.DocID(d) == "" {
			return nil, nil, fmt.Errorf("bundle resource %q: record %d has no id", s.FileName(), i)
		}
	}
	return raw, docs, nil
}

package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/svdoc/internal/facts"
)

const baselineFormat = 2

// errStaleBaseline marks stored tables built by another parser or extractor
// version. Their rows differ in shape, not in content, so no delta is
// computed against them.
var errStaleBaseline = errors.New("stale fact tables baseline")

// baseline is the fact tables of the last run, stamped with the versions
// that produced them.
type baseline struct {
	Format int          `json:"format"`
	Parser string       `json:"parser"`
	Doc    string       `json:"doc"`
	Tables facts.Tables `json:"tables"`
}

func baselinePath(dir string) string {
	return filepath.Join(dir, "fact_tables.json")
}

// loadBaseline returns the tables stored by the previous run. It returns nil
// without error when there are none or they use an older file format, and an
// error wrapping errStaleBaseline when they were built by other versions.
func loadBaseline(dir string, v cacheVersions) (*facts.Tables, error) {
	data, err := os.ReadFile(baselinePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fact tables baseline: %w", err)
	}
	var b baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse fact tables baseline: %w", err)
	}
	switch {
	case b.Format != baselineFormat:
		return nil, nil
	case b.Parser != v.parser:
		return nil, fmt.Errorf("%w: built by parser %s, now %s", errStaleBaseline, b.Parser, v.parser)
	case b.Doc != v.doc:
		return nil, fmt.Errorf("%w: built by extractor %s, now %s", errStaleBaseline, b.Doc, v.doc)
	}
	return &b.Tables, nil
}

func saveBaseline(dir string, v cacheVersions, tables facts.Tables) error {
	b := baseline{
		Format: baselineFormat,
		Parser: v.parser,
		Doc:    v.doc,
		Tables: tables,
	}
	if err := writeJSONAtomic(baselinePath(dir), b); err != nil {
		return fmt.Errorf("write fact tables baseline: %w", err)
	}
	return nil
}

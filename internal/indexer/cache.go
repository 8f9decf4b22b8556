package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash   string `json:"content_hash"`
	DocPath       string `json:"doc_path"`
	ParserVersion string `json:"parser_version"`
	DocVersion    string `json:"doc_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// docCache keeps one extracted document per source file on disk, keyed by
// the file's content hash and the versions that produced it.
type docCache struct {
	dir           string
	parserVersion string
	docVersion    string
	mu            sync.Mutex
	index         cacheIndex
}

func newDocCache(dir string, versions cacheVersions) *docCache {
	return &docCache{
		dir:           dir,
		parserVersion: versions.parser,
		docVersion:    versions.doc,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *docCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *docCache) docsDir() string {
	return filepath.Join(c.dir, "docs")
}

func (c *docCache) docPathForFile(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return filepath.Join(c.docsDir(), hex.EncodeToString(h[:])+".json")
}

func (c *docCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// stale layout, start over
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *docCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

// Prune drops entries for files not in keep.
func (c *docCache) Prune(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, entry := range c.index.Entries {
		if !keep[path] {
			_ = os.Remove(entry.DocPath)
			delete(c.index.Entries, path)
		}
	}
}

func (c *docCache) Get(filePath, contentHash string) (*doc.Doc, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash {
		return nil, false, nil
	}
	if entry.ParserVersion != c.parserVersion || entry.DocVersion != c.docVersion {
		return nil, false, nil
	}

	data, err := os.ReadFile(entry.DocPath)
	if err != nil {
		return nil, false, fmt.Errorf("read cached doc: %w", err)
	}
	var d doc.Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false, fmt.Errorf("parse cached doc: %w", err)
	}
	return &d, true, nil
}

func (c *docCache) Put(filePath, contentHash string, d *doc.Doc) error {
	docPath := c.docPathForFile(filePath)
	if err := writeJSONAtomic(docPath, d); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:   contentHash,
		DocPath:       docPath,
		ParserVersion: c.parserVersion,
		DocVersion:    c.docVersion,
	}
	c.mu.Unlock()
	return nil
}

// ClearCache removes the cache directory for the given root path.
// Returns the cache directory that was targeted.
func ClearCache(rootPath string, cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("clear cache: config is nil")
	}
	cacheDir := resolveCacheDir(rootPath, cfg)
	if err := os.RemoveAll(cacheDir); err != nil {
		return cacheDir, fmt.Errorf("remove cache: %w", err)
	}
	return cacheDir, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

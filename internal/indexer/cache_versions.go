package indexer

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
)

type cacheVersions struct {
	parser string
	doc    string
}

func cacheEnabled(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.CacheEnabled()
}

func resolveCacheDir(rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = ".svdoc_cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

// computeCacheVersions ties cached documents to the parser backend and the
// extraction settings that shaped them.
func computeCacheVersions(backend parser.Backend, cfg *config.Config) cacheVersions {
	return cacheVersions{
		parser: string(backend) + "/" + parser.Version,
		doc:    doc.Version + "/omit=" + strconv.FormatBool(cfg.Doc.OmitUndocumented),
	}
}

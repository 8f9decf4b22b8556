package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/policy"
)

const policyCacheVersion = 1

// policyCacheEntry is the last policy result together with the hash of the
// rules and tables it was computed from.
type policyCacheEntry struct {
	Version int           `json:"version"`
	Hash    string        `json:"hash"`
	Result  policy.Result `json:"result"`
}

func policyCachePath(dir string) string {
	return filepath.Join(dir, "policy_cache.json")
}

func loadPolicyCache(dir string) (*policyCacheEntry, error) {
	data, err := os.ReadFile(policyCachePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry policyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	if entry.Version != policyCacheVersion {
		return nil, nil
	}
	return &entry, nil
}

func savePolicyCache(dir string, entry policyCacheEntry) error {
	if err := writeJSONAtomic(policyCachePath(dir), entry); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return nil
}

func policyInputHash(engine *policy.Engine, tables facts.Tables) (string, error) {
	data, err := json.Marshal(tables)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(engine.Digest()))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolvePolicyDir makes a relative policy directory absolute against the
// project root.
func resolvePolicyDir(rootPath, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	base := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		base = filepath.Dir(rootPath)
	}
	return filepath.Join(base, dir)
}

// policyEngine returns the prepared engine for dir, preparing it on first
// use or when the directory changes between runs.
func (idx *Indexer) policyEngine(ctx context.Context, dir string) (*policy.Engine, error) {
	idx.policyMu.Lock()
	defer idx.policyMu.Unlock()
	if idx.engine != nil && idx.policyDir == dir {
		return idx.engine, nil
	}
	engine, err := policy.New(ctx, dir)
	if err != nil {
		return nil, err
	}
	idx.engine, idx.policyDir = engine, dir
	return engine, nil
}

// evaluatePolicies runs the coverage rules over tables. With a cacheDir the
// stored result is reused while neither the rules nor the tables change.
func (idx *Indexer) evaluatePolicies(ctx context.Context, rootPath, cacheDir string, tables facts.Tables) (*policy.Result, bool, error) {
	engine, err := idx.policyEngine(ctx, resolvePolicyDir(rootPath, idx.Config.Diagnostics.PolicyDir))
	if err != nil {
		return nil, false, fmt.Errorf("load policies: %w", err)
	}

	var hash string
	if cacheDir != "" {
		if hash, err = policyInputHash(engine, tables); err != nil {
			return nil, false, fmt.Errorf("hash policy input: %w", err)
		}
		if entry, err := loadPolicyCache(cacheDir); err == nil && entry != nil && entry.Hash == hash {
			return &entry.Result, true, nil
		}
	}

	res, err := engine.Evaluate(ctx, tables)
	if err != nil {
		return nil, false, err
	}
	if cacheDir != "" {
		if err := savePolicyCache(cacheDir, policyCacheEntry{Version: policyCacheVersion, Hash: hash, Result: *res}); err != nil {
			return res, false, err
		}
	}
	return res, false, nil
}

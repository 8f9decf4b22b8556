package config

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvedLibrary contains the expanded file list for a library
type ResolvedLibrary struct {
	Name         string
	Files        []string
	IsThirdParty bool
}

// ResolveLibraries expands all glob patterns and returns resolved file lists.
// Libraries come back sorted by name and their files sorted by path, so
// downstream merges are deterministic. Explicit Files entries are added to
// their named library ("work" when unset).
func (c *Config) ResolveLibraries(rootPath string) ([]ResolvedLibrary, error) {
	sets := make(map[string]map[string]bool)
	thirdParty := make(map[string]bool)

	names := make([]string, 0, len(c.Libraries))
	for name := range c.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, libName := range names {
		libCfg := c.Libraries[libName]
		thirdParty[libName] = libCfg.IsThirdParty

		fileSet := make(map[string]bool)
		for _, pattern := range libCfg.Files {
			matches, err := expandGlob(absPattern(rootPath, pattern))
			if err != nil {
				// invalid patterns match nothing
				continue
			}
			for _, match := range matches {
				if IsSourceFile(match) && !c.ShouldIgnoreFile(match) {
					fileSet[match] = true
				}
			}
		}

		for _, pattern := range libCfg.Exclude {
			matches, err := expandGlob(absPattern(rootPath, pattern))
			if err != nil {
				continue
			}
			for _, match := range matches {
				delete(fileSet, match)
			}
		}
		sets[libName] = fileSet
	}

	for _, entry := range c.Files {
		if entry.File == "" || !IsSourceFile(entry.File) {
			continue
		}
		lib := entry.Library
		if lib == "" {
			lib = "work"
		}
		if sets[lib] == nil {
			sets[lib] = make(map[string]bool)
		}
		sets[lib][absPattern(rootPath, entry.File)] = true
		if entry.IsThirdParty {
			thirdParty[lib] = true
		}
	}

	var result []ResolvedLibrary
	for name, set := range sets {
		resolved := ResolvedLibrary{Name: name, IsThirdParty: thirdParty[name]}
		for f := range set {
			resolved.Files = append(resolved.Files, f)
		}
		sort.Strings(resolved.Files)
		result = append(result, resolved)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

func absPattern(rootPath, pattern string) string {
	if filepath.IsAbs(pattern) {
		return pattern
	}
	return filepath.Join(rootPath, pattern)
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree.
// Hidden directories (the cache among them) are not descended into.
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return filepath.Glob(pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // keep walking
		}
		if d.IsDir() {
			if path != baseDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, string(filepath.Separator))

	// no directory component: match the file name
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}

	// match the trailing path components only
	pathParts := strings.Split(path, string(filepath.Separator))
	patParts := strings.Split(pattern, string(filepath.Separator))
	if len(pathParts) > len(patParts) {
		tail := filepath.Join(pathParts[len(pathParts)-len(patParts):]...)
		matched, _ := filepath.Match(pattern, tail)
		return matched
	}

	return false
}

// GetAllFiles returns all source files from all libraries, sorted and deduplicated
func (c *Config) GetAllFiles(rootPath string) ([]string, error) {
	libs, err := c.ResolveLibraries(rootPath)
	if err != nil {
		return nil, err
	}

	fileSet := make(map[string]bool)
	for _, lib := range libs {
		for _, f := range lib.Files {
			fileSet[f] = true
		}
	}

	result := make([]string, 0, len(fileSet))
	for f := range fileSet {
		result = append(result, f)
	}
	sort.Strings(result)

	return result, nil
}

// FileLibraryInfo contains library information for a specific file
type FileLibraryInfo struct {
	LibraryName  string
	IsThirdParty bool
}

// FileLibraries maps every resolved file to its library. A file claimed by
// several libraries belongs to the first by name.
func (c *Config) FileLibraries(rootPath string) (map[string]FileLibraryInfo, error) {
	libs, err := c.ResolveLibraries(rootPath)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FileLibraryInfo)
	for _, lib := range libs {
		for _, f := range lib.Files {
			if _, ok := out[f]; ok {
				continue
			}
			out[f] = FileLibraryInfo{LibraryName: lib.Name, IsThirdParty: lib.IsThirdParty}
		}
	}
	return out, nil
}

// GetFileLibrary returns the library information for a file
func (c *Config) GetFileLibrary(filePath string, rootPath string) FileLibraryInfo {
	libs, err := c.FileLibraries(rootPath)
	if err != nil {
		return FileLibraryInfo{LibraryName: "work"}
	}

	absPath, _ := filepath.Abs(filePath)
	for f, info := range libs {
		absF, _ := filepath.Abs(f)
		if absPath == absF {
			return info
		}
	}

	return FileLibraryInfo{LibraryName: "work"}
}

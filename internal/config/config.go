package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for svdoc
type Config struct {
	// Title is shown on the generated index page
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Parser selects the parser backend: "tree-sitter" (default, retried with
	// builtin on syntax errors) or "builtin"
	Parser string `json:"parser,omitempty" yaml:"parser,omitempty" validate:"omitempty,oneof=builtin tree-sitter"`

	// Files is an explicit list of files with optional library overrides
	Files []FileEntry `json:"files,omitempty" yaml:"files,omitempty" validate:"dive"`

	// Libraries maps library names to their configuration
	Libraries map[string]LibraryConfig `json:"libraries,omitempty" yaml:"libraries,omitempty" validate:"dive"`

	// Output controls where and how documentation is written
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// Doc controls which items are documented
	Doc DocConfig `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Diagnostics contains diagnostic rule configuration
	Diagnostics DiagnosticsConfig `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// LibraryConfig defines a library's files and options
type LibraryConfig struct {
	// Files is a list of glob patterns for source files in this library
	Files []string `json:"files" yaml:"files" validate:"required,min=1,dive,required"`

	// Exclude is a list of glob patterns to exclude from this library
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// IsThirdParty marks the library as third-party (left out of the docs by default)
	IsThirdParty bool `json:"isThirdParty,omitempty" yaml:"isThirdParty,omitempty"`
}

// FileEntry is an explicit file entry with optional library metadata
type FileEntry struct {
	File         string `json:"file" yaml:"file" validate:"required"`
	Library      string `json:"library,omitempty" yaml:"library,omitempty"`
	IsThirdParty bool   `json:"isThirdParty,omitempty" yaml:"isThirdParty,omitempty"`
}

// OutputConfig controls generated output
type OutputConfig struct {
	// Dir is the output directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Format is "html" or "json"
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=html json"`
}

// DocConfig controls documentation extraction
type DocConfig struct {
	// OmitUndocumented drops items that carry no documentation
	OmitUndocumented bool `json:"omitUndocumented,omitempty" yaml:"omitUndocumented,omitempty"`

	// IncludeThirdParty documents files of third-party libraries too
	IncludeThirdParty bool `json:"includeThirdParty,omitempty" yaml:"includeThirdParty,omitempty"`
}

// DiagnosticsConfig contains diagnostic configuration
type DiagnosticsConfig struct {
	// Rules maps diagnostic codes to severity: "off", "info", "warning"
	Rules map[string]string `json:"rules,omitempty" yaml:"rules,omitempty" validate:"dive,oneof=off info warning"`

	// IgnorePatterns is a list of file patterns to skip entirely
	IgnorePatterns []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty"`

	// PolicyDir holds extra .rego coverage rules, relative to the project root
	PolicyDir string `json:"policyDir,omitempty" yaml:"policyDir,omitempty"`
}

// CacheConfig controls incremental indexing cache behavior
type CacheConfig struct {
	// Enabled turns on incremental cache usage
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty" yaml:"maxParallelFiles,omitempty" validate:"min=0"`

	// MemoryCacheSize bounds the in-memory document cache used by serve (0 = default)
	MemoryCacheSize int `json:"memoryCacheSize,omitempty" yaml:"memoryCacheSize,omitempty" validate:"min=0"`

	// Cache controls incremental indexing cache behavior
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
}

const (
	defaultCacheDir        = ".svdoc_cache"
	defaultOutputDir       = "doc"
	defaultMemoryCacheSize = 512
)

// Extensions are the file extensions treated as SystemVerilog source.
var Extensions = []string{".sv", ".svh", ".v", ".vh"}

// IsSourceFile reports whether path has a SystemVerilog extension.
func IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func defaultPatterns() []string {
	return []string{"**/*.sv", "**/*.svh", "**/*.v", "**/*.vh"}
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Parser: "tree-sitter",
		Libraries: map[string]LibraryConfig{
			"work": {
				Files:        defaultPatterns(),
				Exclude:      []string{},
				IsThirdParty: false,
			},
		},
		Output: OutputConfig{
			Dir:    defaultOutputDir,
			Format: "html",
		},
		Diagnostics: DiagnosticsConfig{
			Rules:          map[string]string{},
			IgnorePatterns: []string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			MemoryCacheSize:  defaultMemoryCacheSize,
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     defaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// configNames are the file names looked up in a directory, in order.
var configNames = []string{"svdoc.json", ".svdoc.json", "svdoc.yaml", "svdoc.yml"}

// IsConfigFile reports whether path names a project configuration file.
func IsConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range configNames {
		if base == name {
			return true
		}
	}
	return false
}

// Load finds and loads the configuration file
// Search order:
//  1. ./svdoc.json, ./.svdoc.json, ./svdoc.yaml, ./svdoc.yml (current working directory)
//  2. the same names under <rootPath> (if different from cwd)
//  3. ~/.config/svdoc/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range configNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range configNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "svdoc", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Parser == "" {
		c.Parser = "tree-sitter"
	}

	if c.Libraries == nil {
		if len(c.Files) == 0 {
			c.Libraries = map[string]LibraryConfig{
				"work": {Files: defaultPatterns()},
			}
		} else {
			c.Libraries = map[string]LibraryConfig{}
		}
	}

	if c.Output.Dir == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Format == "" {
		c.Output.Format = "html"
	}

	if c.Diagnostics.Rules == nil {
		c.Diagnostics.Rules = make(map[string]string)
	}

	if c.Analysis.MemoryCacheSize == 0 {
		c.Analysis.MemoryCacheSize = defaultMemoryCacheSize
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = defaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints. Errors name fields by their JSON keys.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", ns, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", ns, fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Save writes the configuration to a file, as YAML when the name ends in
// .yaml or .yml and as JSON otherwise
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the on-disk cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled == nil || *c.Analysis.Cache.Enabled
}

// GetRuleSeverity returns the severity for a diagnostic code, or the default if not configured
func (c *Config) GetRuleSeverity(code string, defaultSeverity string) string {
	if severity, ok := c.Diagnostics.Rules[code]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the diagnostic code is not set to "off"
func (c *Config) IsRuleEnabled(code string) bool {
	if severity, ok := c.Diagnostics.Rules[code]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// IsThirdPartyFile checks if a file belongs to a third-party library
func (c *Config) IsThirdPartyFile(filePath string) bool {
	for _, entry := range c.Files {
		if entry.File == "" {
			continue
		}
		if matchPattern(entry.File, filePath) {
			return entry.IsThirdParty
		}
	}
	for _, lib := range c.Libraries {
		if !lib.IsThirdParty {
			continue
		}
		for _, pattern := range lib.Files {
			if matchPattern(pattern, filePath) {
				return true
			}
		}
	}
	return false
}

// ShouldIgnoreFile checks if a file should be skipped entirely
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Diagnostics.IgnorePatterns {
		if matchPattern(pattern, filePath) {
			return true
		}
	}
	return false
}

// matchPattern matches pattern against the full path, then the base name.
func matchPattern(pattern, filePath string) bool {
	if matched, _ := filepath.Match(pattern, filePath); matched {
		return true
	}
	matched, _ := filepath.Match(pattern, filepath.Base(filePath))
	return matched
}

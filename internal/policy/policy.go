// Package policy evaluates Rego rules against the fact tables of a library.
//
// The built-in rules report doc coverage gaps. A project can add its own
// rules by placing .rego files in package svdoc.coverage in a policy
// directory; their violations and coverage are merged with the built-in
// ones.
package policy

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/facts"
)

//go:embed coverage.rego
var coverageRules string

// Rule codes of the built-in coverage rules.
const (
	RuleUndocumentedPort  = "undocumented-port"
	RuleUndocumentedParam = "undocumented-param"
	RuleUndocumentedType  = "undocumented-type"
)

const (
	violationsQuery = "data.svdoc.coverage.all_violations"
	coverageQuery   = "data.svdoc.coverage.coverage"
)

// Engine evaluates prepared policies against fact tables. It is safe for
// concurrent use.
type Engine struct {
	violations rego.PreparedEvalQuery
	coverage   rego.PreparedEvalQuery
	digest     string
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// Coverage counts the documented rows of one relation.
type Coverage struct {
	Total      int `json:"total"`
	Documented int `json:"documented"`
}

// Percent is the documented share, 100 for an empty relation.
func (c Coverage) Percent() float64 {
	if c.Total == 0 {
		return 100
	}
	return 100 * float64(c.Documented) / float64(c.Total)
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation         `json:"violations"`
	Coverage   map[string]Coverage `json:"coverage"`
}

// New prepares the built-in rules plus every .rego file in policyDir. An
// empty policyDir loads the built-in rules only.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	modules := []func(*rego.Rego){rego.Module("coverage.rego", coverageRules)}
	h := sha256.New()
	h.Write([]byte(coverageRules))
	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no policy files found in %s", policyDir)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
			h.Write([]byte(filepath.Base(f)))
			h.Write(content)
		}
	}

	prepare := func(query string) (rego.PreparedEvalQuery, error) {
		opts := append([]func(*rego.Rego){rego.Query(query)}, modules...)
		return rego.New(opts...).PrepareForEval(ctx)
	}

	engine := &Engine{digest: hex.EncodeToString(h.Sum(nil))}
	var err error
	if engine.violations, err = prepare(violationsQuery); err != nil {
		return nil, fmt.Errorf("preparing violations query: %w", err)
	}
	if engine.coverage, err = prepare(coverageQuery); err != nil {
		return nil, fmt.Errorf("preparing coverage query: %w", err)
	}
	return engine, nil
}

// Digest identifies the loaded rules. It changes whenever a rule file does.
func (e *Engine) Digest() string { return e.digest }

// Evaluate runs the policies against tables. Violations come back ordered by
// file, line and rule.
func (e *Engine) Evaluate(ctx context.Context, tables facts.Tables) (*Result, error) {
	input, err := structToMap(tables)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}, Coverage: map[string]Coverage{}}

	rs, err := e.violations.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, _ := rs[0].Expressions[0].Value.([]interface{})
		for _, v := range violations {
			vmap, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			result.Violations = append(result.Violations, Violation{
				Rule:     getString(vmap, "rule"),
				Severity: getString(vmap, "severity"),
				File:     getString(vmap, "file"),
				Line:     getInt(vmap, "line"),
				Message:  getString(vmap, "message"),
			})
		}
	}
	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})

	rs, err = e.coverage.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating coverage: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		kinds, _ := rs[0].Expressions[0].Value.(map[string]interface{})
		for kind, v := range kinds {
			cmap, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			result.Coverage[kind] = Coverage{
				Total:      getInt(cmap, "total"),
				Documented: getInt(cmap, "documented"),
			}
		}
	}

	return result, nil
}

// Diagnostics converts the violations. Unknown severities become info.
func (r *Result) Diagnostics() []doc.Diagnostic {
	out := make([]doc.Diagnostic, 0, len(r.Violations))
	for _, v := range r.Violations {
		sev := doc.SeverityInfo
		if v.Severity == string(doc.SeverityWarning) {
			sev = doc.SeverityWarning
		}
		out = append(out, doc.Diagnostic{
			Severity: sev,
			Code:     v.Rule,
			File:     v.File,
			Line:     v.Line,
			Message:  v.Message,
		})
	}
	return out
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}

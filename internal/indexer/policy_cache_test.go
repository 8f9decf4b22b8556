package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/policy"
)

func TestRunReportsUndocumentedPorts(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cfg := defaultTestConfig([]string{file}, ".cache", false)

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected one coverage diagnostic, got %+v", result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if d.Code != policy.RuleUndocumentedPort || d.Severity != doc.SeverityInfo || d.File != file || d.Line != 2 {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if result.Summary.Info != 1 || result.Summary.Warnings != 0 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if got := result.Coverage["ports"]; got != (policy.Coverage{Total: 1, Documented: 0}) {
		t.Fatalf("unexpected port coverage %+v", got)
	}

	cfg.Diagnostics.Rules = map[string]string{policy.RuleUndocumentedPort: "warning"}
	result = runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Summary.Warnings != 1 {
		t.Fatalf("expected the configured severity to apply, got %+v", result.Diagnostics)
	}

	cfg.Diagnostics.Rules = map[string]string{policy.RuleUndocumentedPort: "off"}
	result = runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(result.Diagnostics) != 0 {
		t.Fatalf("expected the rule to be switched off, got %+v", result.Diagnostics)
	}
}

func TestRunLoadsProjectPolicies(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "module bare;\nendmodule\n")
	rules := `package svdoc.coverage

import rego.v1

violations contains v if {
	some m in input.modules
	m.doc == ""
	v := {"rule": "undocumented-module", "severity": "warning", "file": m.file, "line": m.line, "message": "module has no doc comment"}
}
`
	writeSV(t, dir, "policies/modules.rego", rules)
	cfg := defaultTestConfig([]string{file}, ".cache", false)
	cfg.Diagnostics.PolicyDir = "policies"

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].Code != "undocumented-module" {
		t.Fatalf("expected the project rule to fire, got %+v", result.Diagnostics)
	}
	if result.Summary.Warnings != 1 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestRunWarnsOnMissingPolicyDir(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cfg := defaultTestConfig([]string{file}, ".cache", false)
	cfg.Diagnostics.PolicyDir = "no-such-dir"

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "policy evaluation") {
		t.Fatalf("expected a policy warning, got %+v", result.Warnings)
	}
	if len(result.Library.Data.Modules) != 1 {
		t.Fatalf("expected documentation despite the policy failure")
	}
}

func TestPolicyResultReusedWhileInputsMatch(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	first := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if _, err := os.Stat(policyCachePath(cacheDir)); err != nil {
		t.Fatalf("expected a stored policy result: %v", err)
	}

	idx := NewWithConfig(cfg)
	res, reused, err := idx.evaluatePolicies(context.Background(), dir, cacheDir, first.Tables)
	if err != nil {
		t.Fatalf("evaluatePolicies: %v", err)
	}
	if !reused || len(res.Violations) != 1 {
		t.Fatalf("expected the stored result to be reused, got reused=%v %+v", reused, res)
	}

	changed := first.Tables
	changed.Ports = nil
	res, reused, err = idx.evaluatePolicies(context.Background(), dir, cacheDir, changed)
	if err != nil {
		t.Fatalf("evaluatePolicies: %v", err)
	}
	if reused || len(res.Violations) != 0 {
		t.Fatalf("expected a fresh evaluation for changed tables, got reused=%v %+v", reused, res)
	}
}

func TestPolicyEngineReusedAcrossRuns(t *testing.T) {
	idx := New()
	a, err := idx.policyEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("policyEngine: %v", err)
	}
	b, err := idx.policyEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("policyEngine: %v", err)
	}
	if a != b {
		t.Fatalf("expected the prepared engine to be reused")
	}
}

func TestResolvePolicyDir(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	if got := resolvePolicyDir(dir, "rules"); got != filepath.Join(dir, "rules") {
		t.Fatalf("unexpected dir %q", got)
	}
	if got := resolvePolicyDir(file, "rules"); got != filepath.Join(dir, "rules") {
		t.Fatalf("expected a file root to resolve against its directory, got %q", got)
	}
	if got := resolvePolicyDir(dir, ""); got != "" {
		t.Fatalf("expected no policy dir, got %q", got)
	}
}

// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"os"
	"path/filepath"
	"testing"

	"sesh-cli/internal/core"
	"sesh-cli/internal/options"
	"sesh-cli/internal/registry"
	"sesh-cli/pkg/sessfile"
)

func writeSeshfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sesh.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func evaluate(t *testing.T, content string) (*Host, *sessfile.Registry) {
	t.Helper()
	host := NewHost(options.NewSet(), nil, "1.0.0")
	t.Cleanup(host.Close)
	reg, err := host.Evaluate(writeSeshfile(t, content))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return host, reg
}

func TestEvaluate_RegistersSessions(t *testing.T) {
	t.Parallel()
	_, reg := evaluate(t, `
session("lint", function(s) end)

session("tests", {
  python = {"3.11", "3.12"},
  tags = {"ci"},
  reuse = "yes",
  venv_backend = {"uv", "virtualenv"},
  description = "Run the test suite.",
}, function(s) end)
`)
	decls := reg.Snapshot()
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if decls[0].BaseName() != "lint" || decls[1].BaseName() != "tests" {
		t.Errorf("declaration order not preserved: %s, %s", decls[0].BaseName(), decls[1].BaseName())
	}
	tests := decls[1]
	if len(tests.Interpreters.Values) != 2 || tests.Interpreters.Values[0] != "3.11" {
		t.Errorf("interpreters = %v", tests.Interpreters.Values)
	}
	if !tests.Interpreters.List {
		t.Errorf("a Lua list must mark the axis as a list")
	}
	if tests.Reuse != sessfile.ReuseYes {
		t.Errorf("reuse = %q", tests.Reuse)
	}
	if len(tests.BackendPreference) != 2 || tests.BackendPreference[0] != "uv" {
		t.Errorf("backend preference = %v", tests.BackendPreference)
	}
	if tests.Description() != "Run the test suite." {
		t.Errorf("description = %q", tests.Description())
	}
}

func TestEvaluate_ParametrizeStacking(t *testing.T) {
	t.Parallel()
	_, reg := evaluate(t, `
session("tests",
  parametrize("django", {"1.9", "2.0"}, { ids = {"old", "new"} },
  parametrize("db", {"sqlite", "postgres"},
  function(s) end)))
`)
	decls := reg.Snapshot()
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	instances, err := registry.Expand(decls, registry.ExpandConfig{})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(instances) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(instances))
	}
	// The outer layer carries ids, the inner renders pairs.
	want := "tests(old, db='sqlite')"
	if instances[0].Name != want {
		t.Errorf("first instance = %q, want %q", instances[0].Name, want)
	}
}

func TestEvaluate_ParamWrapper(t *testing.T) {
	t.Parallel()
	_, reg := evaluate(t, `
session("tests",
  parametrize("d", {param("1", {id = "old", tags = {"legacy"}}), "2"},
  function(s) end))
`)
	instances, err := registry.Expand(reg.Snapshot(), registry.ExpandConfig{})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if instances[0].Name != "tests(old)" {
		t.Errorf("first instance = %q", instances[0].Name)
	}
	if !instances[0].HasTag("legacy") {
		t.Errorf("param tags lost: %v", instances[0].Tags)
	}
	if instances[1].Name != "tests(d='2')" {
		t.Errorf("second instance = %q", instances[1].Name)
	}
}

func TestEvaluate_OptionsAssignment(t *testing.T) {
	t.Parallel()
	set := options.NewSet()
	host := NewHost(set, nil, "1.0.0")
	t.Cleanup(host.Close)
	_, err := host.Evaluate(writeSeshfile(t, `
options.sessions = {"lint"}
options.stop_on_first_error = true
`))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	opts, err := set.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Sessions) != 1 || opts.Sessions[0] != "lint" {
		t.Errorf("Sessions = %v", opts.Sessions)
	}
	if !opts.StopOnFirstError {
		t.Errorf("stop_on_first_error not applied")
	}
}

func TestEvaluate_UnknownOptionFails(t *testing.T) {
	t.Parallel()
	host := NewHost(options.NewSet(), nil, "1.0.0")
	t.Cleanup(host.Close)
	_, err := host.Evaluate(writeSeshfile(t, `options.bogus = 1`))
	if !core.IsKind(err, core.KindInvalidOption) {
		t.Errorf("expected invalid-option, got %v", err)
	}
}

func TestEvaluate_NeedsVersion(t *testing.T) {
	t.Parallel()
	host := NewHost(options.NewSet(), nil, "1.0.0")
	t.Cleanup(host.Close)
	_, err := host.Evaluate(writeSeshfile(t, `needs_version(">=2.0")`))
	if !core.IsKind(err, core.KindVersionMismatch) {
		t.Errorf("expected version-mismatch, got %v", err)
	}
}

func TestEvaluate_SyntaxErrorIsConfigLoad(t *testing.T) {
	t.Parallel()
	host := NewHost(options.NewSet(), nil, "1.0.0")
	t.Cleanup(host.Close)
	_, err := host.Evaluate(writeSeshfile(t, `session(`))
	if !core.IsKind(err, core.KindConfigLoad) {
		t.Errorf("expected config-load, got %v", err)
	}
}

func TestEvaluate_HostSession(t *testing.T) {
	t.Parallel()
	_, reg := evaluate(t, `session("docs", { python = false }, function(s) end)`)
	decls := reg.Snapshot()
	if !decls[0].Interpreters.Host {
		t.Errorf("python=false must declare a host session")
	}
}

// A scalar python and a one-element list are different declarations: only
// the list form suffixes instance names.
func TestEvaluate_ScalarVersusSingleElementList(t *testing.T) {
	t.Parallel()
	_, reg := evaluate(t, `
session("scalar", { python = "3.12" }, function(s) end)
session("listed", { python = {"3.12"} }, function(s) end)
`)
	instances, err := registry.Expand(reg.Snapshot(), registry.ExpandConfig{})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	got := names(instances)
	if len(got) != 2 || got[0] != "scalar" || got[1] != "listed-3.12" {
		t.Errorf("expected [scalar listed-3.12], got %v", got)
	}
}

func names(instances []*sessfile.Instance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Name)
	}
	return out
}

// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"testing"

	"sesh-cli/pkg/sessfile"
)

func names(instances []*sessfile.Instance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Name)
	}
	return out
}

func TestExpand_PlainDecl(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{Name: "lint"}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 1 || instances[0].Name != "lint" {
		t.Fatalf("expected [lint], got %v", names(instances))
	}
	if instances[0].Python != "" || instances[0].Host {
		t.Errorf("plain decl should have no interpreter and no host flag")
	}
}

func TestExpand_InterpreterList(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.11", "3.12"}, List: true},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(instances)
	if len(got) != 2 || got[0] != "tests-3.11" || got[1] != "tests-3.12" {
		t.Errorf("expected suffixed names in order, got %v", got)
	}
}

// A scalar interpreter value runs with that interpreter but does not suffix
// the name.
func TestExpand_ScalarInterpreterDoesNotSuffix(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.12"}},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instances[0].Name != "tests" || instances[0].Python != "3.12" {
		t.Errorf("got name %q python %q", instances[0].Name, instances[0].Python)
	}
}

// Suffixing follows the declared shape, not the element count: a one-element
// list still suffixes.
func TestExpand_SingleElementListSuffixes(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.12"}, List: true},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 1 || instances[0].Name != "tests-3.12" {
		t.Errorf("expected [tests-3.12], got %v", names(instances))
	}
	if instances[0].Python != "3.12" || !instances[0].Multi {
		t.Errorf("instance = python %q multi %v", instances[0].Python, instances[0].Multi)
	}
}

func TestExpand_ParametrizeWithIDs(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name: "tests",
		Parametrize: []sessfile.Parametrization{
			sessfile.NewParametrization([]string{"d"}, []any{
				sessfile.Param{Value: "1", ID: "old"},
				sessfile.Param{Value: "2", ID: "new"},
			}),
		},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(instances)
	if len(got) != 2 || got[0] != "tests(old)" || got[1] != "tests(new)" {
		t.Errorf("expected id-form names, got %v", got)
	}
	d, _ := instances[0].CallArgs.Get("d")
	if d != "1" {
		t.Errorf("call spec should keep the raw value, got %v", d)
	}
}

func TestExpand_ParametrizeWithoutIDsRendersPairs(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name: "tests",
		Parametrize: []sessfile.Parametrization{
			sessfile.NewParametrization([]string{"django"}, []any{"2.0"}),
		},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instances[0].Name != "tests(django='2.0')" {
		t.Errorf("got %q", instances[0].Name)
	}
}

func TestExpand_InterpreterAndParametrizeCompose(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.11", "3.12"}, List: true},
		Parametrize: []sessfile.Parametrization{
			sessfile.NewParametrization([]string{"d"}, []any{"1", "2"}),
		},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(instances)
	want := []string{
		"tests-3.11(d='1')",
		"tests-3.11(d='2')",
		"tests-3.12(d='1')",
		"tests-3.12(d='2')",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d instances, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instance %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpand_PythonParametrizeBecomesInterpreter(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name: "tests",
		Parametrize: []sessfile.Parametrization{
			sessfile.NewParametrization([]string{"python"}, []any{"3.11", "3.12"}),
		},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(instances)
	if len(got) != 2 || got[0] != "tests-3.11" || got[1] != "tests-3.12" {
		t.Errorf("expected interpreter-suffixed names, got %v", got)
	}
	if instances[0].Python != "3.11" || instances[1].Python != "3.12" {
		t.Errorf("python values = %q, %q", instances[0].Python, instances[1].Python)
	}
	if _, ok := instances[0].CallArgs.Get("python"); ok {
		t.Errorf("python must not remain a call argument")
	}
}

func TestExpand_HostDecl(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "docs",
		Interpreters: sessfile.InterpreterAxis{Host: true},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !instances[0].Host || instances[0].Python != "" {
		t.Errorf("host decl should expand to a host instance")
	}
}

func TestExpand_TagsUnion(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name: "tests",
		Tags: []string{"ci"},
		Parametrize: []sessfile.Parametrization{
			sessfile.NewParametrization([]string{"d"}, []any{
				sessfile.Param{Value: "1", ID: "old", Tags: []string{"legacy", "ci"}},
			}),
		},
	}}
	instances, err := Expand(decls, ExpandConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := instances[0].Tags
	if len(tags) != 2 || tags[0] != "ci" || tags[1] != "legacy" {
		t.Errorf("tags = %v, want union [ci legacy]", tags)
	}
}

// Each instance gets its own posargs copy; sessions cannot corrupt each
// other through it.
func TestExpand_PosargsAreCopiedPerInstance(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.11", "3.12"}, List: true},
	}}
	instances, err := Expand(decls, ExpandConfig{Posargs: []string{"-x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	instances[0].Posargs[0] = "mutated"
	if instances[1].Posargs[0] != "-x" {
		t.Errorf("posargs leaked across instances")
	}
}

func TestExpand_ForcePythonsReplacesAxis(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.11"}},
	}}
	instances, err := Expand(decls, ExpandConfig{ForcePythons: []string{"3.13"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instances[0].Python != "3.13" {
		t.Errorf("force-python did not replace the axis: %q", instances[0].Python)
	}
}

func TestExpand_ExtraPythonsExtendAxis(t *testing.T) {
	t.Parallel()
	decls := []*sessfile.Decl{{
		Name:         "tests",
		Interpreters: sessfile.InterpreterAxis{Values: []string{"3.11", "3.12"}, List: true},
	}}
	instances, err := Expand(decls, ExpandConfig{ExtraPythons: []string{"3.13"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(instances)
	if len(got) != 3 || got[2] != "tests-3.13" {
		t.Errorf("extra python missing: %v", got)
	}
}

// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"
	"testing"

	"sesh-cli/internal/core"
	"sesh-cli/internal/options"
	"sesh-cli/pkg/sessfile"
)

// inst builds a minimal instance for manifest tests.
func inst(name, python string, decl *sessfile.Decl) *sessfile.Instance {
	if decl == nil {
		decl = &sessfile.Decl{Name: name, DefaultSelected: true}
	}
	return &sessfile.Instance{
		Name:     name,
		Python:   python,
		CallArgs: sessfile.NewCallSpec(),
		Decl:     decl,
	}
}

func queueNames(m *Manifest) []string {
	var out []string
	for _, i := range m.Queue() {
		out = append(out, i.Name)
	}
	return out
}

func TestFilterByNames_KeepsUserOrder(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("a", "", nil), inst("b", "", nil), inst("c", "", nil)})
	if err := m.FilterByNames([]string{"c", "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	if len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Errorf("expected [c a], got %v", got)
	}
}

func TestFilterByNames_DuplicatesRunTwice(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("a", "", nil), inst("b", "", nil)})
	if err := m.FilterByNames([]string{"a", "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	if len(got) != 2 || got[0] != "a" || got[1] != "a" {
		t.Errorf("expected [a a], got %v", got)
	}
}

func TestFilterByNames_BaseNameSelectsAllExpansions(t *testing.T) {
	t.Parallel()
	decl := &sessfile.Decl{Name: "tests", DefaultSelected: true}
	a := inst("tests(old)", "", decl)
	b := inst("tests(new)", "", decl)
	m := New([]*sessfile.Instance{a, b, inst("lint", "", nil)})
	if err := m.FilterByNames([]string{"tests"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	if len(got) != 2 {
		t.Errorf("base name should select all expansions, got %v", got)
	}
}

func TestFilterByNames_MissingPatternFails(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("a", "", nil)})
	err := m.FilterByNames([]string{"a", "nope"})
	if !core.IsKind(err, core.KindInvalidSession) {
		t.Fatalf("expected invalid-session, got %v", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should name the missing session: %v", err)
	}
}

func TestFilterByPythons(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{
		inst("tests-3.11", "3.11", nil),
		inst("tests-3.12", "3.12", nil),
	})
	m.FilterByPythons([]string{"3.12"})
	got := queueNames(m)
	if len(got) != 1 || got[0] != "tests-3.12" {
		t.Errorf("expected [tests-3.12], got %v", got)
	}
}

func TestFilterByTags(t *testing.T) {
	t.Parallel()
	tagged := inst("a", "", nil)
	tagged.Tags = []string{"ci"}
	m := New([]*sessfile.Instance{tagged, inst("b", "", nil)})
	m.FilterByTags([]string{"ci", "other"})
	got := queueNames(m)
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("expected [a], got %v", got)
	}
}

func TestFilterByKeywords(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("tests", "", nil), inst("lint", "", nil)})
	match := func(expr string, candidates []string) (bool, error) {
		for _, c := range candidates {
			if strings.Contains(c, expr) {
				return true, nil
			}
		}
		return false, nil
	}
	if err := m.FilterByKeywords("tes", match); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	if len(got) != 1 || got[0] != "tests" {
		t.Errorf("expected [tests], got %v", got)
	}
}

func TestFilterDefault(t *testing.T) {
	t.Parallel()
	offDecl := &sessfile.Decl{Name: "nightly", DefaultSelected: false}
	m := New([]*sessfile.Instance{inst("tests", "", nil), inst("nightly", "", offDecl)})
	m.FilterDefault()
	got := queueNames(m)
	if len(got) != 1 || got[0] != "tests" {
		t.Errorf("expected [tests], got %v", got)
	}
}

func TestNotify_AppendsOnceAndOnlyOnce(t *testing.T) {
	t.Parallel()
	a := inst("a", "", nil)
	b := inst("b", "", &sessfile.Decl{Name: "b", DefaultSelected: false})
	m := New([]*sessfile.Instance{a, b})
	if err := m.FilterByNames([]string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	added, err := m.Notify("b", []string{"fwd"})
	if err != nil || !added {
		t.Fatalf("Notify = (%v, %v), want (true, nil)", added, err)
	}
	queue := m.Queue()
	if len(queue) != 2 || queue[1].Name != "b" {
		t.Fatalf("expected b appended, got %v", queueNames(m))
	}
	if len(queue[1].Posargs) != 1 || queue[1].Posargs[0] != "fwd" {
		t.Errorf("notify posargs not forwarded: %v", queue[1].Posargs)
	}

	// A second notify is a no-op.
	added, err = m.Notify("b", nil)
	if err != nil || added {
		t.Errorf("second Notify = (%v, %v), want (false, nil)", added, err)
	}

	// Consumed sessions are also a no-op.
	m.Next()
	m.Next()
	added, err = m.Notify("b", nil)
	if err != nil || added {
		t.Errorf("Notify after completion = (%v, %v), want (false, nil)", added, err)
	}
}

func TestNotify_UnknownTargetFails(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("a", "", nil)})
	_, err := m.Notify("ghost", nil)
	if !core.IsKind(err, core.KindInvalidSession) {
		t.Errorf("expected invalid-session, got %v", err)
	}
}

// The documented requires scenario: tests over two interpreters, cov
// requiring tests-{python}, selection of cov only.
func TestScheduleRequires_TemplateExpansion(t *testing.T) {
	t.Parallel()
	testsDecl := &sessfile.Decl{Name: "tests", DefaultSelected: true}
	covDecl := &sessfile.Decl{Name: "cov", DefaultSelected: true, Requires: []string{"tests-{python}"}}

	t11 := inst("tests-3.11", "3.11", testsDecl)
	t12 := inst("tests-3.12", "3.12", testsDecl)
	c11 := inst("cov-3.11", "3.11", covDecl)
	c12 := inst("cov-3.12", "3.12", covDecl)
	m := New([]*sessfile.Instance{t11, t12, c11, c12})
	if err := m.FilterByNames([]string{"cov"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.ScheduleRequires(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	want := []string{"tests-3.11", "cov-3.11", "tests-3.12", "cov-3.12"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestScheduleRequires_MissingTarget(t *testing.T) {
	t.Parallel()
	covDecl := &sessfile.Decl{Name: "cov", DefaultSelected: true, Requires: []string{"tests-{python}"}}
	m := New([]*sessfile.Instance{inst("cov-3.11", "3.11", covDecl)})
	err := m.ScheduleRequires()
	if !core.IsKind(err, core.KindRequiresMissing) {
		t.Errorf("expected requires-missing, got %v", err)
	}
}

func TestScheduleRequires_Cycle(t *testing.T) {
	t.Parallel()
	aDecl := &sessfile.Decl{Name: "a", DefaultSelected: true, Requires: []string{"b"}}
	bDecl := &sessfile.Decl{Name: "b", DefaultSelected: true, Requires: []string{"a"}}
	m := New([]*sessfile.Instance{inst("a", "", aDecl), inst("b", "", bDecl)})
	err := m.ScheduleRequires()
	if !core.IsKind(err, core.KindRequiresCycle) {
		t.Errorf("expected requires-cycle, got %v", err)
	}
}

func TestSelect_EmptyExplicitSelectionRunsNothing(t *testing.T) {
	t.Parallel()
	m := New([]*sessfile.Instance{inst("a", "", nil)})
	opts := &options.Options{SessionsExplicit: true}
	if err := Select(m, opts, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Queue()) != 0 {
		t.Errorf("explicit empty selection must run nothing, got %v", queueNames(m))
	}
}

func TestSelect_DefaultFallback(t *testing.T) {
	t.Parallel()
	off := &sessfile.Decl{Name: "nightly", DefaultSelected: false}
	m := New([]*sessfile.Instance{inst("tests", "", nil), inst("nightly", "", off)})
	if err := Select(m, &options.Options{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := queueNames(m)
	if len(got) != 1 || got[0] != "tests" {
		t.Errorf("expected default-selected only, got %v", got)
	}
}

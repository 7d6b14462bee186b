// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sesh-cli/internal/manifest"
	"sesh-cli/internal/runner"
	"sesh-cli/pkg/sessfile"

	"github.com/tidwall/gjson"
)

func sampleResults() []*runner.Result {
	return []*runner.Result{
		{Name: "t", Status: runner.StatusSuccess, Duration: 1500 * time.Millisecond},
		{Name: "lint", Status: runner.StatusSkipped, Reason: "interpreter-missing"},
	}
}

func TestWriteJSON_Shape(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSON(path, sampleResults()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)

	if got := gjson.Get(doc, "result").String(); got != "success" {
		t.Errorf("result = %q", got)
	}
	if got := gjson.Get(doc, "sessions.#").Int(); got != 2 {
		t.Errorf("sessions count = %d", got)
	}
	if got := gjson.Get(doc, "sessions.0.name").String(); got != "t" {
		t.Errorf("sessions.0.name = %q", got)
	}
	if got := gjson.Get(doc, "sessions.0.status").String(); got != "success" {
		t.Errorf("sessions.0.status = %q", got)
	}
	if got := gjson.Get(doc, "sessions.0.duration_s").Float(); got != 1.5 {
		t.Errorf("duration_s = %v", got)
	}
	if got := gjson.Get(doc, "sessions.1.reason").String(); got != "interpreter-missing" {
		t.Errorf("sessions.1.reason = %q", got)
	}
}

func TestBuildJSON_FailedResult(t *testing.T) {
	t.Parallel()
	results := []*runner.Result{
		{Name: "a", Status: runner.StatusSuccess},
		{Name: "b", Status: runner.StatusFailed, Reason: "exit 1"},
		{Name: "c", Status: runner.StatusAborted},
	}
	doc := BuildJSON(results)
	if doc.Result != "failed" {
		t.Errorf("result = %q, want failed", doc.Result)
	}
}

func TestBuildJSON_SkippedDoesNotFail(t *testing.T) {
	t.Parallel()
	doc := BuildJSON([]*runner.Result{{Name: "a", Status: runner.StatusSkipped}})
	if doc.Result != "success" {
		t.Errorf("skipped-only run must be success, got %q", doc.Result)
	}
}

func TestListJSON_Fields(t *testing.T) {
	t.Parallel()
	decl := &sessfile.Decl{Name: "tests", DefaultSelected: true, Doc: "Run tests.\nMore."}
	spec := sessfile.NewCallSpec()
	spec.Set("d", "1")
	m := manifest.New([]*sessfile.Instance{{
		Name:     "tests(d='1')",
		Python:   "3.12",
		CallArgs: spec,
		Tags:     []string{"ci"},
		Decl:     decl,
	}})

	var buf bytes.Buffer
	if err := ListJSON(&buf, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := buf.String()

	if got := gjson.Get(doc, "0.session").String(); got != "tests" {
		t.Errorf("session = %q", got)
	}
	if got := gjson.Get(doc, "0.name").String(); got != "tests(d='1')" {
		t.Errorf("name = %q", got)
	}
	if got := gjson.Get(doc, "0.description").String(); got != "Run tests." {
		t.Errorf("description = %q", got)
	}
	if got := gjson.Get(doc, "0.python").String(); got != "3.12" {
		t.Errorf("python = %q", got)
	}
	if got := gjson.Get(doc, "0.tags.0").String(); got != "ci" {
		t.Errorf("tags = %q", got)
	}
	if got := gjson.Get(doc, "0.call_spec.d").String(); got != "1" {
		t.Errorf("call_spec.d = %q", got)
	}
}

func TestSummary_CountsPerStatus(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Summary(&buf, []*runner.Result{
		{Name: "a", Status: runner.StatusSuccess},
		{Name: "b", Status: runner.StatusFailed, Reason: "exit 1"},
		{Name: "c", Status: runner.StatusAborted},
	})
	out := buf.String()
	for _, want := range []string{"a", "b", "c", "1 success", "1 failed", "1 aborted"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestList_MarksSelection(t *testing.T) {
	t.Parallel()
	onDecl := &sessfile.Decl{Name: "on", DefaultSelected: true}
	offDecl := &sessfile.Decl{Name: "off", DefaultSelected: false}
	m := manifest.New([]*sessfile.Instance{
		{Name: "on", CallArgs: sessfile.NewCallSpec(), Decl: onDecl},
		{Name: "off", CallArgs: sessfile.NewCallSpec(), Decl: offDecl},
	})
	m.FilterDefault()

	var buf bytes.Buffer
	List(&buf, m)
	out := buf.String()
	if !strings.Contains(out, "on") || !strings.Contains(out, "off") {
		t.Errorf("listing must show every instance:\n%s", out)
	}
	if !strings.Contains(out, "*") || !strings.Contains(out, "-") {
		t.Errorf("listing must mark selection state:\n%s", out)
	}
}

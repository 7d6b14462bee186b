// SPDX-License-Identifier: MPL-2.0

// Package report renders the human-readable status summary and the
// machine-readable JSON report, plus the session listing output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sesh-cli/internal/runner"
)

type (
	// JSONReport is the machine-readable run report (§ report contract).
	JSONReport struct {
		Sessions []JSONSession `json:"sessions"`
		Result   string        `json:"result"`
	}

	// JSONSession is one session entry of the JSON report.
	JSONSession struct {
		Name      string         `json:"name"`
		Status    string         `json:"status"`
		Reason    string         `json:"reason,omitempty"`
		DurationS float64        `json:"duration_s"`
		Args      map[string]any `json:"args,omitempty"`
	}
)

// BuildJSON converts results into the report document.
func BuildJSON(results []*runner.Result) *JSONReport {
	doc := &JSONReport{Result: "success"}
	for _, r := range results {
		doc.Sessions = append(doc.Sessions, JSONSession{
			Name:      r.Name,
			Status:    string(r.Status),
			Reason:    r.Reason,
			DurationS: r.Duration.Seconds(),
			Args:      r.Args,
		})
		if !r.Status.OK() {
			doc.Result = "failed"
		}
	}
	return doc
}

// WriteJSON writes the report document to path.
func WriteJSON(path string, results []*runner.Result) error {
	doc := BuildJSON(results)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// EncodeJSON streams the report document to w.
func EncodeJSON(w io.Writer, results []*runner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildJSON(results))
}

// Summary writes the concluding per-session status table and the totals
// line.
func Summary(w io.Writer, results []*runner.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("Ran sessions:"))
	counts := make(map[runner.Status]int)
	for _, r := range results {
		counts[r.Status]++
		line := fmt.Sprintf("  %s %s", statusGlyph(r.Status), r.Name)
		if r.Reason != "" && r.Status != runner.StatusSuccess {
			line += SubtitleStyle.Render(" (" + r.Reason + ")")
		}
		if r.Status == runner.StatusSuccess || r.Status == runner.StatusFailed {
			line += SubtitleStyle.Render(fmt.Sprintf(" [%.2fs]", r.Duration.Seconds()))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, summaryLine(counts))
}

func summaryLine(counts map[runner.Status]int) string {
	parts := ""
	for _, status := range []runner.Status{runner.StatusSuccess, runner.StatusFailed, runner.StatusSkipped, runner.StatusAborted} {
		if counts[status] == 0 {
			continue
		}
		if parts != "" {
			parts += ", "
		}
		parts += fmt.Sprintf("%d %s", counts[status], status)
	}
	return SubtitleStyle.Render(parts)
}

func statusGlyph(status runner.Status) string {
	switch status {
	case runner.StatusSuccess:
		return SuccessStyle.Render("✓")
	case runner.StatusFailed:
		return ErrorStyle.Render("✗")
	case runner.StatusSkipped:
		return WarningStyle.Render("-")
	case runner.StatusAborted:
		return ErrorStyle.Render("!")
	default:
		return "?"
	}
}

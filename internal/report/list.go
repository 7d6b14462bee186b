// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"sesh-cli/internal/manifest"
	"sesh-cli/pkg/sessfile"

	"github.com/charmbracelet/glamour"
)

type (
	// ListEntry is one instance in the machine-readable session listing.
	ListEntry struct {
		Session     string         `json:"session"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Python      string         `json:"python,omitempty"`
		Tags        []string       `json:"tags,omitempty"`
		CallSpec    map[string]any `json:"call_spec,omitempty"`
	}
)

// BuildList converts the manifest's full instance set into listing entries,
// one per instance, selection state ignored.
func BuildList(m *manifest.Manifest) []ListEntry {
	var entries []ListEntry
	for _, inst := range m.All() {
		entries = append(entries, listEntry(inst))
	}
	return entries
}

func listEntry(inst *sessfile.Instance) ListEntry {
	entry := ListEntry{
		Session:     inst.BaseName(),
		Name:        inst.Name,
		Description: inst.Decl.Description(),
		Python:      inst.Python,
		Tags:        inst.Tags,
	}
	if inst.CallArgs != nil && inst.CallArgs.Len() > 0 {
		entry.CallSpec = inst.CallArgs.Map()
	}
	return entry
}

// ListJSON writes the machine-readable session listing.
func ListJSON(w io.Writer, m *manifest.Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildList(m))
}

// List writes the plain session listing: a selection marker, the canonical
// name, and the short description for every expanded instance.
func List(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, TitleStyle.Render("Sessions defined in this configuration:"))
	fmt.Fprintln(w)
	for _, inst := range m.All() {
		marker := SubtitleStyle.Render("-")
		name := SubtitleStyle.Render(inst.Name)
		if m.Selected(inst) {
			marker = SuccessStyle.Render("*")
			name = SessionStyle.Render(inst.Name)
		}
		line := fmt.Sprintf("%s %s", marker, name)
		if desc := inst.Decl.Description(); desc != "" {
			line += SubtitleStyle.Render(" -> " + desc)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("sessions marked with * are selected, sessions marked with - are skipped."))
}

// ListLong writes the listing with full docstrings rendered as terminal
// markdown. Rendering failures degrade to the raw docstring.
func ListLong(w io.Writer, m *manifest.Manifest) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	for _, inst := range m.All() {
		fmt.Fprintln(w, SessionStyle.Render(inst.Name))
		doc := inst.Decl.Doc
		if doc == "" {
			fmt.Fprintln(w, SubtitleStyle.Render("  (no description)"))
			continue
		}
		if err == nil {
			if rendered, renderErr := renderer.Render(doc); renderErr == nil {
				fmt.Fprint(w, rendered)
				continue
			}
		}
		fmt.Fprintln(w, doc)
	}
}

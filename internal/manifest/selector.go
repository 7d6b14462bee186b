// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"sesh-cli/internal/options"
)

// Select applies the invocation's filters to the manifest, in the documented
// order: names, interpreters, keyword expression, tags. With no name
// selection the default-selected fallback applies first; an explicitly empty
// session list selects nothing.
func Select(m *Manifest, opts *options.Options, match KeywordMatcher) error {
	switch {
	case len(opts.Sessions) > 0:
		if err := m.FilterByNames(opts.Sessions); err != nil {
			return err
		}
	case opts.SessionsExplicit:
		m.queue = nil
		return nil
	default:
		m.FilterDefault()
	}

	if len(opts.Pythons) > 0 {
		m.FilterByPythons(opts.Pythons)
	}
	if opts.Keywords != "" {
		if err := m.FilterByKeywords(opts.Keywords, match); err != nil {
			return err
		}
	}
	if len(opts.Tags) > 0 {
		m.FilterByTags(opts.Tags)
	}
	return nil
}

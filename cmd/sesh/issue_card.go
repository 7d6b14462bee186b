// SPDX-License-Identifier: MPL-2.0

package main

import (
	"sesh-cli/internal/core"
	"sesh-cli/internal/issue"
)

// issueCard maps an engine error to its help card, if the catalog has one.
func issueCard(err error) (*issue.Card, bool) {
	kind := core.KindOf(err)
	if kind == "" {
		return nil, false
	}
	return issue.Lookup(kind)
}

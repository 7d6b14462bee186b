// SPDX-License-Identifier: MPL-2.0

// Package manifest holds the ordered, mutable queue of session instances one
// invocation will run: selection filters, the requires scheduler, and the
// notify mutation used by running sessions to enqueue others.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/internal/dag"
	"sesh-cli/pkg/sessfile"
)

type (
	// KeywordMatcher evaluates one keyword expression against an instance's
	// candidate strings (its names and tags). The boolean grammar of the
	// expression is the host's concern; the manifest only cares about the
	// verdict.
	KeywordMatcher func(expr string, candidates []string) (bool, error)

	// Manifest is the source of truth for the sequence of sessions to run.
	// It can be mutated during execution: one session may notify another,
	// appending it to the queue.
	Manifest struct {
		all      []*sessfile.Instance
		queue    []*sessfile.Instance
		consumed []*sessfile.Instance
	}
)

// New creates a Manifest over the full expanded instance list; initially
// every instance is queued.
func New(all []*sessfile.Instance) *Manifest {
	return &Manifest{
		all:   all,
		queue: append([]*sessfile.Instance(nil), all...),
	}
}

// Queue returns the instances still pending, in order.
func (m *Manifest) Queue() []*sessfile.Instance {
	return append([]*sessfile.Instance(nil), m.queue...)
}

// Len returns the number of pending plus consumed instances.
func (m *Manifest) Len() int {
	return len(m.queue) + len(m.consumed)
}

// Next pops the front of the queue, or nil when the queue is empty.
func (m *Manifest) Next() *sessfile.Instance {
	if len(m.queue) == 0 {
		return nil
	}
	inst := m.queue[0]
	m.queue = m.queue[1:]
	m.consumed = append(m.consumed, inst)
	return inst
}

// All returns every expanded instance, selected or not; Selected reports
// whether one is currently selected.
func (m *Manifest) All() []*sessfile.Instance {
	return append([]*sessfile.Instance(nil), m.all...)
}

// Selected reports whether an instance is queued or already consumed.
func (m *Manifest) Selected(inst *sessfile.Instance) bool {
	for _, q := range m.queue {
		if q == inst {
			return true
		}
	}
	for _, c := range m.consumed {
		if c == inst {
			return true
		}
	}
	return false
}

// Contains reports whether any queued or consumed instance matches name.
func (m *Manifest) Contains(name string) bool {
	for _, inst := range m.queue {
		if inst.Matches(name) {
			return true
		}
	}
	for _, inst := range m.consumed {
		if inst.Matches(name) {
			return true
		}
	}
	return false
}

// FilterByNames keeps instances matching the user-given patterns, in the
// user's order. A pattern matching a base name keeps all its parametric
// expansions. Explicit duplicates run twice. Patterns matching nothing make
// the whole selection invalid.
func (m *Manifest) FilterByNames(patterns []string) error {
	var next []*sessfile.Instance
	var missing []string
	for _, pattern := range patterns {
		found := false
		for _, inst := range m.queue {
			if inst.Matches(pattern) {
				next = append(next, inst)
				found = true
			}
		}
		if !found {
			missing = append(missing, pattern)
		}
	}
	if len(missing) > 0 {
		return core.New(core.KindInvalidSession, "sessions not found: %s", strings.Join(missing, ", "))
	}
	m.queue = next
	return nil
}

// FilterByPythons keeps instances whose interpreter is in the given list.
func (m *Manifest) FilterByPythons(pythons []string) {
	var next []*sessfile.Instance
	for _, inst := range m.queue {
		for _, p := range pythons {
			if inst.Python == p {
				next = append(next, inst)
				break
			}
		}
	}
	m.queue = next
}

// FilterByKeywords keeps instances for which the keyword expression holds
// over the instance's name, base name, and tags.
func (m *Manifest) FilterByKeywords(expr string, match KeywordMatcher) error {
	var next []*sessfile.Instance
	for _, inst := range m.queue {
		candidates := append([]string{inst.Name, inst.BaseName()}, inst.Tags...)
		ok, err := match(expr, candidates)
		if err != nil {
			return core.Wrap(core.KindInvalidOption, err, "invalid keyword expression %q", expr)
		}
		if ok {
			next = append(next, inst)
		}
	}
	m.queue = next
	return nil
}

// FilterByTags keeps instances whose tag set intersects the given tags.
func (m *Manifest) FilterByTags(tags []string) {
	var next []*sessfile.Instance
	for _, inst := range m.queue {
		for _, tag := range tags {
			if inst.HasTag(tag) {
				next = append(next, inst)
				break
			}
		}
	}
	m.queue = next
}

// FilterDefault applies the bare-invocation fallback: keep instances whose
// declaration is selected by default.
func (m *Manifest) FilterDefault() {
	var next []*sessfile.Instance
	for _, inst := range m.queue {
		if inst.Decl.DefaultSelected {
			next = append(next, inst)
		}
	}
	m.queue = next
}

// Notify enqueues the instance matching target at the end of the queue.
// Returns false without error when the target is already queued or has
// already run. The enqueued copy gets the provided posargs when non-nil.
func (m *Manifest) Notify(target string, posargs []string) (bool, error) {
	if m.Contains(target) {
		return false, nil
	}
	for _, inst := range m.all {
		if inst.Matches(target) {
			clone := inst.Clone()
			if posargs != nil {
				clone.Posargs = append([]string(nil), posargs...)
			}
			m.queue = append(m.queue, clone)
			return true, nil
		}
	}
	return false, core.New(core.KindInvalidSession, "session %q not found", target)
}

// ScheduleRequires reorders the queue so every requires edge is satisfied:
// required instances run before their dependents, pulled into the queue when
// not selected. The order is stable, preserving the user's requested order
// where the edges allow. Fails with requires-cycle or requires-missing
// before anything runs.
func (m *Manifest) ScheduleRequires() error {
	needsScheduling := false
	for _, inst := range m.queue {
		if len(inst.Decl.Requires) > 0 {
			needsScheduling = true
			break
		}
	}
	if !needsScheduling {
		return nil
	}

	byName := make(map[string]*sessfile.Instance, len(m.all))
	graph := dag.New()

	// resolve maps a requires target to the first matching instance in
	// expansion order.
	resolve := func(from *sessfile.Instance, target string) (*sessfile.Instance, error) {
		for _, candidate := range m.all {
			if candidate.Matches(target) {
				return candidate, nil
			}
		}
		return nil, core.New(core.KindRequiresMissing,
			"session %q requires %q, which matches no session", from.Name, target)
	}

	// Build the dependency closure over all instances reachable from the
	// queue.
	var add func(inst *sessfile.Instance) error
	add = func(inst *sessfile.Instance) error {
		if _, seen := byName[inst.Name]; seen {
			return nil
		}
		byName[inst.Name] = inst
		graph.AddNode(inst.Name)
		for _, target := range inst.Requires() {
			dep, err := resolve(inst, target)
			if err != nil {
				return err
			}
			graph.AddDependency(inst.Name, dep.Name)
			if err := add(dep); err != nil {
				return err
			}
		}
		return nil
	}

	roots := make([]string, 0, len(m.queue))
	for _, inst := range m.queue {
		if err := add(inst); err != nil {
			return err
		}
		roots = append(roots, inst.Name)
	}

	order, err := graph.StableOrder(roots)
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return core.Wrap(core.KindRequiresCycle, err, "requires edges form a cycle")
		}
		return err
	}

	next := make([]*sessfile.Instance, 0, len(order))
	for _, name := range order {
		next = append(next, byName[name])
	}
	m.queue = next
	return nil
}

// String summarizes the queue for debug logging.
func (m *Manifest) String() string {
	names := make([]string, 0, len(m.queue))
	for _, inst := range m.queue {
		names = append(names, inst.Name)
	}
	return fmt.Sprintf("manifest[%s]", strings.Join(names, ", "))
}

// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"os"
	"path/filepath"

	"sesh-cli/internal/core"
	"sesh-cli/internal/platform"

	"sesh-cli/pkg/sessfile"
)

type (
	// Manager owns the backend registry and the environment lifecycle:
	// selection along preference chains, reuse/staleness decisions, and
	// lazy creation under the env root.
	Manager struct {
		// EnvRoot is the directory holding one subdirectory per instance.
		EnvRoot string
		// DefaultBackend applies when a declaration has no preference chain.
		DefaultBackend string
		// ForceBackend overrides every chain unconditionally.
		ForceBackend string
		// GlobalReuse is the invocation-level reuse policy.
		GlobalReuse sessfile.ReusePolicy

		backends map[string]Backend
	}
)

// NewManager creates a Manager with the standard backend set registered.
func NewManager(envRoot string) *Manager {
	m := &Manager{
		EnvRoot:        envRoot,
		DefaultBackend: Virtualenv,
		GlobalReuse:    sessfile.ReuseNo,
		backends:       make(map[string]Backend),
	}
	m.Register(VirtualenvBackend{})
	m.Register(VenvBackend{})
	m.Register(NewConda(Conda))
	m.Register(NewConda(Mamba))
	m.Register(NewConda(Micromamba))
	m.Register(UVBackend{})
	m.Register(PassthroughBackend{})
	return m
}

// Register adds or replaces a backend.
func (m *Manager) Register(b Backend) {
	m.backends[b.Name()] = b
}

// Get returns a backend by name.
func (m *Manager) Get(name string) (Backend, bool) {
	b, ok := m.backends[name]
	return b, ok
}

// Select resolves the backend for one instance: the forced backend wins
// unconditionally; otherwise the declaration's preference chain is walked and
// the first available backend is chosen; an empty chain uses the default.
// Host instances (python=false) always select the passthrough backend.
func (m *Manager) Select(inst *sessfile.Instance) (Backend, error) {
	if inst.Host {
		return m.backends[None], nil
	}
	if m.ForceBackend != "" {
		b, ok := m.backends[m.ForceBackend]
		if !ok {
			return nil, core.New(core.KindInvalidOption, "unknown forced backend %q", m.ForceBackend)
		}
		return b, nil
	}
	chain := inst.Decl.BackendPreference
	if len(chain) == 0 {
		chain = []string{m.DefaultBackend}
	}
	if err := ValidateChain(chain); err != nil {
		return nil, err
	}
	for _, name := range chain {
		if b := m.backends[name]; b != nil && b.Available() {
			return b, nil
		}
	}
	return nil, core.New(core.KindBackendUnavailable,
		"no backend in chain %v is available for session %q", chain, inst.Name)
}

// Location computes the environment directory for an instance.
func (m *Manager) Location(inst *sessfile.Instance) string {
	return filepath.Join(m.EnvRoot, platform.SanitizeDirName(inst.Name))
}

// CacheDir returns the shared cross-session cache directory under the env
// root, creating it on first use.
func (m *Manager) CacheDir() (string, error) {
	dir := filepath.Join(m.EnvRoot, ".cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Ensure makes the instance's environment exist and returns it. The stored
// digest plus the effective reuse policy decide between reuse and rebuild:
//
//   - never: always rebuild, even when reuse is forced globally;
//   - no: rebuild (the default);
//   - yes: reuse when the stored digest matches the computed one;
//   - always: reuse whenever the directory holds any environment at all.
//
// For passthrough instances no directory is touched; the host interpreter is
// resolved and returned.
func (m *Manager) Ensure(ctx Context, inst *sessfile.Instance, b Backend) (*Environment, error) {
	if b.Name() == None {
		host, err := ctx.resolver().Resolve(inst.Python)
		if err != nil {
			return nil, err
		}
		return &Environment{Kind: None, InterpreterPath: host}, nil
	}

	location := m.Location(inst)
	digest := ComputeDigest(b.Name(), inst.Python, inst.Decl.BackendParams)
	reuse := m.effectiveReuse(inst)

	env := &Environment{
		Location:        location,
		Kind:            b.Name(),
		InterpreterPath: b.InterpreterPath(location),
		BinDir:          b.BinDir(location),
	}

	switch {
	case reuse == sessfile.ReuseAlways && envDirPresent(location):
		env.Reused = true
		return env, nil
	case reuse == sessfile.ReuseYes && ExistsAndIsFresh(location, digest):
		env.Reused = true
		return env, nil
	}

	if err := os.RemoveAll(location); err != nil {
		return nil, core.Wrap(core.KindCommandFailed, err, "failed to clear stale environment %s", location)
	}
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, core.Wrap(core.KindCommandFailed, err, "failed to create env root")
	}
	if err := b.Create(ctx, location, inst.Python, inst.Decl.BackendParams); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, core.Wrap(core.KindCommandFailed, err, "failed to create environment directory %s", location)
	}
	if err := WriteDigest(location, digest); err != nil {
		return nil, core.Wrap(core.KindCommandFailed, err, "failed to record environment digest")
	}
	return env, nil
}

// effectiveReuse folds the declaration's reuse policy over the global one:
// never and always on the declaration are absolute; yes/no defer to a
// stronger global setting.
func (m *Manager) effectiveReuse(inst *sessfile.Instance) sessfile.ReusePolicy {
	decl := inst.Decl.Reuse
	global := m.GlobalReuse
	if global == "" {
		global = sessfile.ReuseNo
	}
	switch decl {
	case sessfile.ReuseNever:
		return sessfile.ReuseNo
	case sessfile.ReuseAlways:
		return sessfile.ReuseAlways
	case sessfile.ReuseYes:
		if global == sessfile.ReuseAlways {
			return sessfile.ReuseAlways
		}
		return sessfile.ReuseYes
	case sessfile.ReuseNo, "":
		switch global {
		case sessfile.ReuseNever:
			return sessfile.ReuseNo
		case "":
			return sessfile.ReuseNo
		default:
			return global
		}
	}
	return sessfile.ReuseNo
}

// envDirPresent reports whether the directory holds a previously created
// environment (its digest file exists, matching or not).
func envDirPresent(location string) bool {
	_, err := ReadDigest(location)
	return err == nil
}

func wrapUnavailable(tool string, err error) error {
	return core.Wrap(core.KindBackendUnavailable, err, "%s is not on PATH", tool)
}

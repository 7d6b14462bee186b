// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"sesh-cli/internal/core"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Card is a rendered help card for one engine error kind: a markdown
	// body with concrete fixes the user can try.
	Card struct {
		kind  core.Kind
		mdMsg string
	}
)

// Kind returns the error kind this card describes.
func (c *Card) Kind() core.Kind {
	return c.kind
}

// Render returns the card's markdown rendered for the terminal.
func (c *Card) Render() (string, error) {
	return render(c.mdMsg, "auto")
}

// Markdown returns the raw markdown body.
func (c *Card) Markdown() string {
	return c.mdMsg
}

var (
	render = glamour.Render

	configLoadCard = &Card{
		kind: core.KindConfigLoad,
		mdMsg: `
# Could not load the configuration script!

Either no sesh.lua exists between here and the filesystem root, or the
script failed to evaluate; the error below names the cause.

## Things you can try:
- Create a sesh.lua in your project root:
~~~lua
session("tests", { python = "3.12" }, function(s)
  s:install("pytest")
  s:run("pytest")
end)
~~~

- Or point sesh at the script explicitly:
~~~
$ sesh -f path/to/sesh.lua
~~~`,
	}

	backendUnavailableCard = &Card{
		kind: core.KindBackendUnavailable,
		mdMsg: `
# No usable environment backend!

Every backend in the session's preference chain reported unavailable.

## Things you can try:
- Install the first tool in the chain (for example, "uv" or "micromamba")
  and make sure it is on PATH.
- End the chain with an always-available fallback:
~~~lua
session("tests", { venv_backend = {"uv", "virtualenv"} }, function(s) ... end)
~~~
- Force a specific backend for one run:
~~~
$ sesh --force-venv-backend venv
~~~`,
	}

	interpreterMissingCard = &Card{
		kind: core.KindInterpreterMissing,
		mdMsg: `
# Interpreter not found!

The session asked for an interpreter that is not installed (or not on PATH).

## Things you can try:
- Install the requested interpreter version.
- Let the uv backend download it:
~~~
$ sesh --default-venv-backend uv --download-python always
~~~
- Skip sessions with missing interpreters instead of failing:
~~~
$ sesh --no-error-on-missing-interpreters
~~~`,
	}

	externalUseCard = &Card{
		kind: core.KindExternalUse,
		mdMsg: `
# Command outside the session environment!

A command resolved to an executable outside the session's environment while
the external-run policy is strict.

## Things you can try:
- Mark the call as intentionally external:
~~~lua
s:run("git", "status", { external = true })
~~~
- Or install the tool into the environment so it resolves internally.`,
	}

	requiresCycleCard = &Card{
		kind: core.KindRequiresCycle,
		mdMsg: `
# Session requirements form a cycle!

The requires edges between your sessions loop back on themselves, so no
valid order exists.

## Example of a cycle:
~~~lua
session("a", { requires = {"b"} }, function(s) ... end)
session("b", { requires = {"a"} }, function(s) ... end)  -- a -> b -> a
~~~

## Things you can try:
- Break the cycle by removing one of the requires entries.
- If one direction is only a nicety, replace it with s:notify().`,
	}
)

// cards indexes the catalog by error kind.
var cards = func() map[core.Kind]*Card {
	all := []*Card{
		configLoadCard,
		backendUnavailableCard,
		interpreterMissingCard,
		externalUseCard,
		requiresCycleCard,
	}
	m := make(map[core.Kind]*Card, len(all))
	for _, c := range all {
		m[c.kind] = c
	}
	return m
}()

// Lookup returns the help card for an error kind, if the catalog has one.
func Lookup(kind core.Kind) (*Card, bool) {
	c, ok := cards[kind]
	return c, ok
}

// Kinds returns the catalog's kinds in a stable order.
func Kinds() []core.Kind {
	kinds := maps.Keys(cards)
	slices.Sort(kinds)
	return kinds
}

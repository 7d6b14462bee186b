// SPDX-License-Identifier: MPL-2.0

// Command sesh is a session-based task-automation driver: it discovers
// sessions declared in a sesh.lua configuration script, builds isolated
// per-session environments, and runs the sessions' commands inside them.
package main

func main() {
	Execute()
}

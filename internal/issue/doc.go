// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error presentation: the ActionableError
// type carrying operation/resource/suggestion context, and a catalog of
// rendered help cards for the engine's error kinds.
package issue

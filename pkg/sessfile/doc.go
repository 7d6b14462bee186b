// SPDX-License-Identifier: MPL-2.0

// Package sessfile defines the data model produced by evaluating a sesh
// configuration script: session declarations, parametrization layers, call
// specs, and the registry that collects declarations during evaluation.
//
// This package is a leaf dependency: it imports only the standard library.
// The script host and the engine packages import it; it never imports them.
package sessfile

// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation utilities: user-facing
// error formatting with JSON-path prefixes, and input size checks applied
// before parsing configuration files.
package cueutil

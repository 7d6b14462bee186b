// SPDX-License-Identifier: MPL-2.0

// Package scriptmeta parses the inline metadata block a runnable script may
// carry at its top: a comment block delimited by "# /// script" and "# ///"
// declaring the interpreter constraint and dependency list.
package scriptmeta

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type (
	// Metadata is the parsed inline block.
	Metadata struct {
		// RequiresPython is the interpreter constraint, e.g. ">=3.11".
		RequiresPython string `toml:"requires-python"`
		// Dependencies lists the requirement strings to install.
		Dependencies []string `toml:"dependencies"`
	}
)

const (
	openMarker  = "# /// script"
	closeMarker = "# ///"
)

// ParseFile reads a script and extracts its metadata block. A script without
// a block yields an empty Metadata and no error.
func ParseFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	inBlock := false
	closed := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case !inBlock && strings.TrimSpace(line) == openMarker:
			inBlock = true
		case inBlock && strings.TrimSpace(line) == closeMarker:
			closed = true
		case inBlock && !closed:
			stripped, ok := stripCommentPrefix(line)
			if !ok {
				return nil, fmt.Errorf("invalid metadata block in %s: line %q is not a comment", path, line)
			}
			lines = append(lines, stripped)
		}
		if closed {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inBlock && !closed {
		return nil, fmt.Errorf("unterminated metadata block in %s", path)
	}
	if !inBlock {
		return &Metadata{}, nil
	}
	return Parse(strings.Join(lines, "\n"))
}

// Parse decodes the uncommented block body.
func Parse(body string) (*Metadata, error) {
	var meta Metadata
	if err := toml.Unmarshal([]byte(body), &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata block: %w", err)
	}
	return &meta, nil
}

// stripCommentPrefix removes the leading "#" or "# " of a block line.
func stripCommentPrefix(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "#" {
		return "", true
	}
	if strings.HasPrefix(trimmed, "# ") {
		return trimmed[2:], true
	}
	return "", false
}

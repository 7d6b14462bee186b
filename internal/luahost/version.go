// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"fmt"
	"strconv"
	"strings"
)

// versionSatisfies checks a comma-separated version constraint like
// ">=2024.1" or ">=1.0, <2.0" against the running driver version. Dev
// builds ("dev") satisfy every constraint.
func versionSatisfies(version, spec string) (bool, error) {
	if version == "" || version == "dev" {
		return true, nil
	}
	have, err := parseVersion(version)
	if err != nil {
		return false, fmt.Errorf("driver version %q is malformed: %w", version, err)
	}
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		ok, err := satisfiesClause(have, clause)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func satisfiesClause(have []int, clause string) (bool, error) {
	op := "=="
	rest := clause
	for _, candidate := range []string{">=", "<=", "==", ">", "<"} {
		if strings.HasPrefix(clause, candidate) {
			op = candidate
			rest = strings.TrimSpace(clause[len(candidate):])
			break
		}
	}
	want, err := parseVersion(rest)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", clause, err)
	}
	cmp := compareVersions(have, want)
	switch op {
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	default:
		return cmp == 0, nil
	}
}

// parseVersion splits a dotted numeric version, ignoring a leading "v" and
// any non-numeric suffix on the last component.
func parseVersion(s string) ([]int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return nil, fmt.Errorf("empty version")
	}
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		digits := part
		for i, r := range part {
			if r < '0' || r > '9' {
				digits = part[:i]
				break
			}
		}
		if digits == "" {
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no numeric components in %q", s)
	}
	return out, nil
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

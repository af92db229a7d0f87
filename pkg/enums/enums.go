// Package enums holds the closed string sets persisted as Postgres enums.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func valid[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches raw against set after trimming whitespace.
func parse[T ~string](set []T, kind, raw string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if valid(set, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}

// Package enums holds the string enums shared by models, services and the
// Postgres enum types created by the migrations.
package enums

import (
	"fmt"
	"strings"
)

func contains[T ~string](valid []T, v T) bool {
	for _, candidate := range valid {
		if candidate == v {
			return true
		}
	}
	return false
}

func parse[T ~string](kind string, valid []T, value string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(value)))
	if contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}

// Package clix holds flag parsing and terminal formatting shared by commands.
package clix

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/pflag"
)

const DefaultLimit = 20

// ParseLimit reads --limit, falling back to DefaultLimit for missing or non-positive values.
func ParseLimit(flags *pflag.FlagSet) int {
	limit, _ := flags.GetInt("limit")
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// ParseList splits a comma separated flag value, trimming and dropping empties.
func ParseList(flags *pflag.FlagSet, name string) []string {
	raw, _ := flags.GetString(name)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Truncate shortens s to at most width terminal cells.
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance bounds how far a typo may be from a real name
// before the CLI stays quiet instead of guessing.
const maxSuggestDistance = 3

// suggestCommand names the subcommand closest to the unknown input,
// or "" when nothing is within suggesting range.
func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for i, command := range commands {
		names[i] = command.Name
	}
	name, _ := closest(unknown, names)
	return name
}

// suggestFlag finds the first flag token in args that flagSet does not
// define and returns the nearest defined flag, rendered with its
// dash prefix. Later unknown flags are left for the next parse error.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		defined = append(defined, f.Name)
	})

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		name, _, _ = strings.Cut(name, "=")
		if flagDefined(flagSet, name) {
			continue
		}

		match, ok := closest(name, defined)
		if !ok {
			return ""
		}
		if len(match) == 1 {
			return "-" + match
		}
		return "--" + match
	}
	return ""
}

func flagDefined(flagSet *pflag.FlagSet, name string) bool {
	found := false
	flagSet.VisitAll(func(f *pflag.Flag) {
		if f.Name == name || f.Shorthand == name {
			found = true
		}
	})
	return found
}

// closest picks the candidate with the smallest edit distance to
// input, provided that distance is within maxSuggestDistance.
func closest(input string, candidates []string) (string, bool) {
	best := ""
	bestDistance := maxSuggestDistance + 1
	for _, candidate := range candidates {
		if d := editDistance(input, candidate); d < bestDistance {
			bestDistance = d
			best = candidate
		}
	}
	return best, best != ""
}

// editDistance is the Levenshtein distance: single-character inserts,
// deletes, and substitutions. Two reusable rows instead of the full
// matrix.
func editDistance(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}

	previous := make([]int, len(a)+1)
	current := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current[0] = j
		for i := 1; i <= len(a); i++ {
			substitution := previous[i-1]
			if a[i-1] != b[j-1] {
				substitution++
			}
			current[i] = min(previous[i]+1, current[i-1]+1, substitution)
		}
		previous, current = current, previous
	}
	return previous[len(a)]
}

// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseCPUList parses a comma-separated list of CPU numbers and
// ranges, the format of the kernel's cpulist files and of the CLI
// target selectors. "0-4,7,8,10-12" means CPUs 0 to 4, CPUs 7, 8,
// and 10 to 12. The result is sorted with duplicates removed. An
// empty string parses to an empty list, matching the kernel's
// representation of an empty CPU mask.
func ParseCPUList(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, token := range strings.Split(list, ",") {
		token = strings.TrimSpace(token)
		first, last, found := strings.Cut(token, "-")
		if !found {
			n, err := strconv.Atoi(token)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad CPU number %q in %q", token, list)
			}
			seen[n] = true
			continue
		}
		lo, err := strconv.Atoi(first)
		if err != nil || lo < 0 {
			return nil, fmt.Errorf("bad CPU range %q in %q", token, list)
		}
		hi, err := strconv.Atoi(last)
		if err != nil || hi < lo {
			return nil, fmt.Errorf("bad CPU range %q in %q", token, list)
		}
		for n := lo; n <= hi; n++ {
			seen[n] = true
		}
	}

	return sortedKeys(seen), nil
}

// FormatCPUList renders CPU numbers as a compact range list, the
// inverse of ParseCPUList. Runs of three or more consecutive numbers
// collapse to "first-last"; a pair stays as two numbers, so
// [0 1 2 3 8] renders as "0-3,8" and [5 6] as "5,6".
func FormatCPUList(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}

	sorted := append([]int(nil), cpus...)
	sort.Ints(sorted)

	var parts []string
	runStart := sorted[0]
	previous := sorted[0]
	flush := func() {
		switch {
		case previous == runStart:
			parts = append(parts, strconv.Itoa(runStart))
		case previous == runStart+1:
			parts = append(parts, strconv.Itoa(runStart), strconv.Itoa(previous))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", runStart, previous))
		}
	}
	for _, n := range sorted[1:] {
		if n == previous || n == previous+1 {
			if n == previous+1 {
				previous = n
			}
			continue
		}
		flush()
		runStart, previous = n, n
	}
	flush()

	return strings.Join(parts, ",")
}

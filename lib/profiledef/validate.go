// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package profiledef

import (
	"fmt"
)

// Validate checks a Profile for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the profile
// is structurally valid; whether its properties and values exist on a
// particular host is Resolve's business.
//
// Structural checks:
//   - The profile must have a name and at least one assignment
//   - Each assignment must have a property and a value
//   - Each assignment must select targets with exactly one of cpus,
//     packages, dies, or all
//   - Target numbers must not be negative
func Validate(profile *Profile) []string {
	var issues []string

	if profile.Name == "" {
		issues = append(issues, "profile has no name")
	}
	if len(profile.Assignments) == 0 {
		issues = append(issues, "profile has no assignments (at least one is required)")
	}

	for index, assignment := range profile.Assignments {
		prefix := fmt.Sprintf("assignments[%d]", index)
		if assignment.Property != "" {
			prefix = fmt.Sprintf("%s %q", prefix, assignment.Property)
		} else {
			issues = append(issues, fmt.Sprintf("%s: property is required", prefix))
		}
		if assignment.Value == "" {
			issues = append(issues, fmt.Sprintf("%s: value is required", prefix))
		}

		selectors := 0
		if len(assignment.CPUs) > 0 {
			selectors++
		}
		if len(assignment.Packages) > 0 {
			selectors++
		}
		if len(assignment.Dies) > 0 {
			selectors++
		}
		if assignment.All {
			selectors++
		}
		if selectors != 1 {
			issues = append(issues, fmt.Sprintf(
				"%s: exactly one of cpus, packages, dies, or all must select targets", prefix))
		}

		for _, id := range assignment.CPUs {
			if id < 0 {
				issues = append(issues, fmt.Sprintf("%s: negative CPU number %d", prefix, id))
			}
		}
		for _, id := range assignment.Packages {
			if id < 0 {
				issues = append(issues, fmt.Sprintf("%s: negative package number %d", prefix, id))
			}
		}
		for _, id := range assignment.Dies {
			if id < 0 {
				issues = append(issues, fmt.Sprintf("%s: negative die number %d", prefix, id))
			}
		}
	}

	return issues
}

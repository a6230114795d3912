// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes the build identity stamped into powerfleet
// binaries.
//
// Release builds inject the variables with -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/powerfleet/powerfleet/lib/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/powerfleet/powerfleet/lib/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds fall back to the defaults below. The version also
// rides along in captured snapshots and store records, so a restore
// can say which build wrote the state it is about to replay.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time. Version moves by hand at release points.
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Short returns the bare version number, the form recorded in
// snapshot documents and store rows.
func Short() string { return Version }

// Info renders the one-line --version form.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}

// Full renders Info plus the toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  go: %s\n  platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

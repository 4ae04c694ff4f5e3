//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// lintTargets lists the cmdb library packages and the cmdb CLI.
var lintTargets = []string{"./pkg/...", "./internal/...", "./cmd/..."}

// Lint runs golangci-lint over the cmdb packages and the cmdb CLI.
func Lint() error {
	args := append([]string{"run", "--timeout", "5m"}, lintTargets...)
	return sh.RunV(binLint, args...)
}

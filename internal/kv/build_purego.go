//go:build !cgo_sqlite
// +build !cgo_sqlite

package kv

// Compiled by default. Uses a pure Go SQLite implementation so the binary
// cross-compiles without a C toolchain.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

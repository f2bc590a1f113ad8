//go:build cgo_sqlite
// +build cgo_sqlite

package kv

// Compiled when building with CGO and the cgo_sqlite tag. Uses the C SQLite
// implementation, which is faster than the pure Go port.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

package types

import "errors"

// Error kinds surfaced by indexer operations. Callers classify failures with
// errors.Is; the wrapped message carries the file path and cause.
var (
	// ErrConfig indicates invalid construction-time configuration. Fatal,
	// never silently corrected.
	ErrConfig = errors.New("invalid indexer configuration")

	// ErrIO indicates an unreadable file. A full index run records it per
	// file and continues with the rest of the workspace.
	ErrIO = errors.New("file not readable")

	// ErrProvider indicates an embedding call failed. The affected file's
	// update aborts with its previously indexed state intact.
	ErrProvider = errors.New("embedding provider failed")

	// ErrStore indicates a persistent-store operation failed.
	ErrStore = errors.New("store operation failed")
)

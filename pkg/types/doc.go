// Package types defines the shared data model of the semdex index: chunk
// and file records, search results, statistics, and the error kinds used to
// classify indexer failures.
package types

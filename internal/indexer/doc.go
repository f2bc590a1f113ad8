// Package indexer ties the pipeline together: it walks a workspace, splits
// files into overlapping line chunks, embeds them, and persists the result
// through the vector store. It also answers similarity queries by scanning
// all stored chunks.
//
// Chunk identifiers are derived from the file path and chunk position, so
// re-indexing an unchanged file writes the same records and re-indexing a
// changed file overwrites them in place. Mutations to one file are serialized
// on a per-path lock, and a single-file update never leaves partial state:
// embedding happens entirely before the first write.
package indexer

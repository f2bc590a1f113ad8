// Package embedder generates vector embeddings for text chunks.
//
// Three providers are available: OpenAI and Jina, which talk to their
// respective HTTP APIs through a shared OpenAI-compatible adapter, and a
// deterministic local provider that derives unit vectors from content hashes
// and needs no network access. All providers share an LRU cache keyed by the
// SHA-256 hash of the input text, and the remote providers retry transient
// failures with exponential backoff.
package embedder

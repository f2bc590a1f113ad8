// Package mcp implements the Model Context Protocol (MCP) server for semdex.
//
// The server exposes six tools to AI coding assistants over JSON-RPC 2.0 on
// stdio:
//   - index_codebase: index or refresh the whole workspace
//   - search_code: rank indexed chunks against a natural language query
//   - update_file: re-index one file
//   - remove_file: drop one file from the index
//   - get_stats: report index size and embedding dimension
//   - clear_index: delete the workspace index
//
// Tool handlers return their payloads as indented JSON text content.
// Parameter errors use standard JSON-RPC codes; domain failures surface as
// internal errors with the underlying message attached as data.
package mcp

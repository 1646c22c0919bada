// Package memory implements a relevance-ranked memory engine for
// conversational agents. Past interactions are stored as embedded records,
// scored against the current query with time-decayed cosine similarity, and
// surfaced as a bounded context window.
//
// Architecture:
//   - Store: record storage backend (append-only file log, in-memory map,
//     or chromem-go indexed)
//   - Embedder: text-to-vector conversion (injected; mock and ONNX
//     implementations ship under memory/embedder)
//   - Manager: orchestrates ingestion, retrieval, and decay-driven eviction
//
// The engine never runs background work: decay influences every score
// automatically, and eviction happens only when the caller invokes
// Manager.ForgetStale. Everything around the engine (the conversational
// loop, tools, prompt assembly) is a collaborator calling Remember and
// Recall.
package memory

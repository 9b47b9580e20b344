// Package memory is the long-term memory manager of the assistant. It decides
// what to remember, merges conflicting facts and ranks prior knowledge for a
// new query.
//
// Invariants:
// - Trivial input never reaches the embedding or generation services.
// - A salient memory always carries a non-empty summary.
// - A new salient fact closer than the duplicate threshold to a stored one
//   is adjudicated against it instead of stored a second time.
// - lastAccessed >= timestamp, and relations never reference the memory itself.
// - Read paths never fail: collaborator errors are logged and yield no results.
// - Every operation emits a tracing span and metrics.
//
// Usage:
//
//	mgr, _ := memory.NewManager(memory.Config{Store: store, Embedder: emb, Oracle: orc, Logger: logger})
//	defer mgr.Close()
//	_, _ = mgr.AddMemory(ctx, "My name is Alex and I love hiking", memory.TypeConversation, nil, nil)
//	related, _ := mgr.GetRelatedMemories(ctx, "what does the user like?", 5)
//	_ = related
package memory

// Package embedding converts text into fixed-width vectors for storage in the
// knowledge store.
//
// The package separates two concerns:
//
//   - Embedder: the model collaborator. A black-box text → vector function
//     whose output width (the model's native dimension) is a property of the
//     configured model, not of the caller. The production implementation
//     wraps the OpenAI embeddings API; tests substitute a deterministic stub.
//
//   - Codec: width adaptation. The storage schema declares a fixed vector
//     width (vector(1536) in db/migrations) that outlives model swaps. The
//     Codec expands narrower native vectors to the schema width with a
//     deterministic filler pattern and rejects wider ones outright, so the
//     write path and the query path always agree on vector geometry.
//
// The filler is a low-magnitude pattern derived from the model identifier.
// It is not zero: a zero tail shared by every stored vector contributes
// nothing to the inner product either way, but a model-derived pattern makes
// vectors from different models visibly non-comparable instead of silently
// similar. At ±1e-6 per component the pattern's effect on cosine similarity
// between same-model vectors is below float32 noise. The native components
// are preserved bit-exactly as the vector prefix, so the model's output can
// be recovered later by truncating to the model width.
package embedding

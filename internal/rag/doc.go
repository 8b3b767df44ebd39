// Package rag assembles retrieval context for generation.
//
// The Orchestrator owns the pipeline's one externally meaningful guarantee:
// for a fixed snapshot of stored documents and a fixed query, AnswerQuery is
// deterministic — the same ordered passage list every time. It embeds the
// query, searches the user's knowledge (optionally backfilling from shared
// knowledge when the user's own documents are sparse), merges in the user's
// profile, and produces an ordered Bundle. An empty bundle is a legitimate
// outcome; storage and embedding errors propagate unchanged so a degraded
// store is never mistaken for "no relevant knowledge".
//
// Generation is a collaborator behind the narrow Generator interface. The
// production implementation renders the bundle into a persona prompt and
// calls the OpenAI chat API; this package defines the handoff, not the
// generation model's behavior.
package rag

// Package editlog records reversible document changes.
//
// Every processed commit yields one Log. Logs are keyed by the commit's
// identity anchor and replaced wholesale on reprocessing, so no stale entry
// survives a content swap. A Log can be undone (Rollback), replayed from an
// empty document (Apply), or exported as an RFC 6902 JSON Patch.
package editlog

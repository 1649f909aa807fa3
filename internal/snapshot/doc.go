// Package snapshot computes the document as of any commit by replaying
// edit logs from an empty document. Every function is pure: the same
// position sequence and logs always yield the same documents.
package snapshot

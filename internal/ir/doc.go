// Package ir provides the value model for docsync documents.
//
// This package contains the tagged value union, segmented paths, and the
// tree operations every other package builds on. ir imports nothing
// internal, so it remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - IRValue is sealed; appliers type-switch over it exhaustively
//   - A nil IRValue means "absent", IRNull means "present and null"
//   - Paths are []string internally, dotted strings only when serialized
//   - Reserved "$meta" keys live beside data and are stripped for consumers
package ir

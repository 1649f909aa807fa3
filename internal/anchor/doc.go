// Package anchor gives every commit a stable identity.
//
// The id lives in an HTML comment on the first line of the commit's
// content, so it survives rendering and is read back without any registry:
//
//	<!-- docsync:id=0192f5c4-7e1a-7b3c-9d2e-5f6a7b8c9d0e -->
//
// Content swapped wholesale (a new variant, a rewrite without the comment)
// has no anchor and receives a new id on the next Ensure.
package anchor

// Package patch applies Insert, Update and Delete instructions to a
// document and records every change in an edit log.
//
// Appliers are pure: they copy the input document, mutate the copy, and
// return it with the log. A skipped instruction (missing path, protection
// flag, unmergeable value) is reported as an ApplyError and logged at Warn;
// siblings of the skipped node are still processed.
//
// Protection is driven by the reserved $meta map on document nodes:
//
//	$meta.updatable: false    blocks Update of the subtree unless the patch
//	                          sets $meta.updatable: true at that exact node
//	$meta.necessary: "self"   blocks Delete of the node itself
//	$meta.necessary: "all"    blocks Delete of the node and every descendant,
//	                          except the node's $meta or $meta.necessary
//	$meta.template: {...}     default merged under values Insert adds
//
// Commit content carries instructions as tagged YAML blocks:
//
//	<insert>
//	party:
//	  lead: ayla
//	---
//	gold: 5
//	</insert>
//
// Fragments separated by a line holding only --- are decoded independently.
package patch

// Package api is the caller-facing surface of docsync: direct mutations by
// path or by object, and point-in-time snapshot queries.
//
// Direct mutations go through the normal pipeline. Each one renders an
// instruction block, appends it to the newest commit that may carry
// instructions, and submits a mutation job to the scheduler. Because the
// block lives in the commit, replaying that commit later reproduces the
// write.
package api

// Package preflight provides readiness checks for the filesystem paths and
// external binaries the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once on startup so a misconfigured tree fails
//     fast instead of burning through the queue.
//   - The CLI "gestrec status" command displays the same results alongside
//     binary availability.
package preflight

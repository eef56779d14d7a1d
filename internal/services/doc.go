// Package services holds the shared error taxonomy and context plumbing used
// by stage handlers and the external tool clients beneath it.
//
// Stage code wraps failures with one of the sentinel markers so the workflow
// manager can classify them: validation, configuration, and not-found
// failures park the item for review, everything else is retryable.
package services

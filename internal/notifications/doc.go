// Package notifications publishes pipeline events (scan results, queue
// progress, training outcomes, errors) to an ntfy topic. When no topic is
// configured every publish is a cheap no-op, so callers never need to guard
// their notification calls.
package notifications

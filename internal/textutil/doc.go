// Package textutil sanitizes clip titles for safe use as frame directory
// and feature file names.
package textutil

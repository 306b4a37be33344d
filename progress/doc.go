// Package progress keeps the leaf task counters of one task tree run and
// notifies an observer after every change.
package progress

// Package types defines the outcome vocabularies shared by recipes and the
// runtime, and the contract task adapters implement.
package types

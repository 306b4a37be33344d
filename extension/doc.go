// Package extension provides the run-time registry of named task factories
// used by declarative recipes.
//
// The default registry carries the built-in factories (delay, success, error,
// command); applications register their own factories to expose custom
// adapters to YAML recipes.
package extension

// Package policy defines the workflow policies a group uses to decide, from
// its children's outcomes, when to stop starting further children and what
// its own result is.
package policy

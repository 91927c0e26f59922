// Package acl takes ownership of filesystem objects and grants the current
// user full control over them. The change is persistent and never reverted.
package acl

// Adjuster rewrites ownership and permissions. It is stateless apart from
// the one-time privilege setup and safe for concurrent use.
type Adjuster struct{}

// New returns an Adjuster.
func New() *Adjuster { return &Adjuster{} }

// TakeOwnership makes the current user the owner of path and grants it full
// control. Callers treat failure as advisory.
func (a *Adjuster) TakeOwnership(path string) error {
	return takeOwnership(path)
}

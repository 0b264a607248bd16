// Package identity abstracts the "current user" provider. The engine never
// performs authentication itself; it only asks who, if anyone, is bound.
package identity

// Provider reports the identity remote operations are scoped to.
type Provider interface {
	// UserID returns the bound user id, or "" when nobody is bound.
	UserID() string
	// Email returns the bound user's email, or "" when unknown.
	Email() string
	// IsBound reports whether an identity is currently bound.
	IsBound() bool
}

// Static is a fixed identity, bound at construction. The daemon builds one
// from configuration; tests build them inline.
type Static struct {
	ID           string
	EmailAddress string
}

func (s Static) UserID() string { return s.ID }
func (s Static) Email() string  { return s.EmailAddress }
func (s Static) IsBound() bool  { return s.ID != "" }

// None is the unbound identity.
type None struct{}

func (None) UserID() string { return "" }
func (None) Email() string  { return "" }
func (None) IsBound() bool  { return false }

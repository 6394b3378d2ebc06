package auth

import "slices"

// Subject groups the principals and credentials of one caller.
//
// A Subject is owned by a single execution context and is not safe for concurrent use.
// Sets compare elements by pointer identity.
type Subject struct {
	principals []*Identity
	public     []Credential
	private    []Credential
	readOnly   bool
}

// NewSubject returns a subject holding the given private credentials.
func NewSubject(private ...Credential) *Subject {
	s := &Subject{}
	for _, c := range private {
		s.AddPrivateCredential(c)
	}
	return s
}

// Principals returns a copy of the principals.
func (s *Subject) Principals() []*Identity {
	return slices.Clone(s.principals)
}

// PublicCredentials returns a copy of the public credentials.
func (s *Subject) PublicCredentials() []Credential {
	return slices.Clone(s.public)
}

// PrivateCredentials returns a copy of the private credentials.
func (s *Subject) PrivateCredentials() []Credential {
	return slices.Clone(s.private)
}

// AddPrincipal adds p unless already present.
func (s *Subject) AddPrincipal(p *Identity) {
	if p != nil && !slices.Contains(s.principals, p) {
		s.principals = append(s.principals, p)
	}
}

// RemovePrincipal removes p and reports whether it was present.
func (s *Subject) RemovePrincipal(p *Identity) bool {
	n := len(s.principals)
	s.principals = slices.DeleteFunc(s.principals, func(e *Identity) bool { return e == p })
	return len(s.principals) != n
}

// AddPublicCredential adds c unless already present.
func (s *Subject) AddPublicCredential(c Credential) {
	s.public = addCredential(s.public, c)
}

// RemovePublicCredential removes c and reports whether it was present.
func (s *Subject) RemovePublicCredential(c Credential) bool {
	var ok bool
	s.public, ok = removeCredential(s.public, c)
	return ok
}

// AddPrivateCredential adds c unless already present.
func (s *Subject) AddPrivateCredential(c Credential) {
	s.private = addCredential(s.private, c)
}

// RemovePrivateCredential removes c and reports whether it was present.
func (s *Subject) RemovePrivateCredential(c Credential) bool {
	var ok bool
	s.private, ok = removeCredential(s.private, c)
	return ok
}

// IdentityToken returns the first identity token among the public credentials.
func (s *Subject) IdentityToken() (*IdentityToken, bool) {
	for _, c := range s.public {
		if t, ok := c.(*IdentityToken); ok {
			return t, true
		}
	}
	return nil, false
}

// SetReadOnly marks the subject read-only. Authenticators do not publish into it anymore.
func (s *Subject) SetReadOnly() {
	s.readOnly = true
}

// IsReadOnly reports whether the subject is read-only.
func (s *Subject) IsReadOnly() bool {
	return s.readOnly
}

func addCredential(set []Credential, c Credential) []Credential {
	if c == nil || slices.Contains(set, c) {
		return set
	}
	return append(set, c)
}

func removeCredential(set []Credential, c Credential) ([]Credential, bool) {
	n := len(set)
	set = slices.DeleteFunc(set, func(e Credential) bool { return e == c })
	return set, len(set) != n
}

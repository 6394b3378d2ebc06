package auth

import (
	"context"
	"errors"
	"slices"
)

// VerifyFunc checks a credential and returns the identity behind it.
// Returning an error wrapping ErrCredentialRejected rejects the credential; any other error
// is a backend failure.
type VerifyFunc func(ctx context.Context, credential Credential) (*Identity, error)

// Module implements the Authenticator protocol around a VerifyFunc. Concrete authenticators
// embed it.
type Module struct {
	kinds  []Kind
	verify VerifyFunc

	subject    *Subject
	credential Credential
	staged     *Identity

	committed   *Identity
	token       *IdentityToken
	committedTo *Subject
}

// NewModule returns a module verifying credentials of the given kinds with verify.
func NewModule(verify VerifyFunc, kinds ...Kind) *Module {
	return &Module{
		kinds:  kinds,
		verify: verify,
	}
}

// Kinds implements Authenticator.
func (m *Module) Kinds() []Kind {
	return slices.Clone(m.kinds)
}

// Initialize implements Authenticator. State committed by an earlier login is kept so that
// Logout can still undo it.
func (m *Module) Initialize(subject *Subject, credential Credential) {
	m.subject = subject
	m.credential = credential
	m.staged = nil
}

// Login implements Authenticator.
func (m *Module) Login(ctx context.Context) (Outcome, error) {
	if m.subject == nil {
		return Outcome{}, ErrNotInitialized
	}
	m.staged = nil

	if m.credential == nil {
		return Decline(ErrNoCredentials), nil
	}
	if !slices.Contains(m.kinds, m.credential.Kind()) {
		return Decline(ErrUnsupportedCredentialKind), nil
	}

	identity, err := m.verify(ctx, m.credential)
	if errors.Is(err, ErrCredentialRejected) {
		return Reject(err), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if identity == nil {
		return Reject(ErrCredentialRejected), nil
	}

	m.staged = identity
	return Accept(identity), nil
}

// Commit implements Authenticator. The principal and an identity token are added to the
// subject and the verified credential is removed from its private credentials.
// Commit into a read-only subject fails and leaves the subject untouched.
func (m *Module) Commit() bool {
	if m.staged == nil {
		return false
	}
	identity := m.staged
	m.staged = nil

	if m.subject.IsReadOnly() {
		return false
	}

	token := &IdentityToken{Name: identity.Name}
	m.subject.AddPrincipal(identity)
	m.subject.AddPublicCredential(token)
	m.subject.RemovePrivateCredential(m.credential)
	m.credential = nil

	m.committed = identity
	m.token = token
	m.committedTo = m.subject
	return true
}

// Logout implements Authenticator. It only undoes a commit into the current subject.
func (m *Module) Logout() bool {
	if m.committed == nil || m.committedTo != m.subject {
		return false
	}

	removed := m.subject.RemovePrincipal(m.committed)
	if m.subject.RemovePublicCredential(m.token) {
		removed = true
	}

	m.committed = nil
	m.token = nil
	m.committedTo = nil
	return removed
}

// Committed returns the identity published by the last commit, or nil.
func (m *Module) Committed() *Identity {
	return m.committed
}

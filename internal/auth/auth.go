// Package auth defines credentials, subjects and the authenticator contract used to log
// repository callers in against the directory.
package auth

import (
	"context"
	"fmt"
)

// Kind identifies a family of credentials. Authenticators are registered per kind.
type Kind string

// Credential kinds.
const (
	KindPassword Kind = "password"
	KindToken    Kind = "token"
	KindSystem   Kind = "system"
	// KindIdentity is the derived, non-authenticating token published on commit.
	KindIdentity Kind = "identity"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Authenticator verifies one credential on behalf of one execution context.
//
// Instances are stateful and not safe for concurrent use. The protocol is
// Initialize, Login, then Commit when Login accepted. Logout undoes a previous Commit.
type Authenticator interface {
	// Kinds returns the credential kinds the authenticator understands.
	Kinds() []Kind

	// Initialize binds the authenticator to a subject and the credential to verify.
	Initialize(subject *Subject, credential Credential)

	// Login verifies the credential. A non-nil error means the backend could not answer
	// and aborts the whole dispatch.
	Login(ctx context.Context) (Outcome, error)

	// Commit publishes the accepted identity into the subject.
	// Returns false when there is nothing to publish.
	Commit() bool

	// Logout removes what Commit published. Returns false when nothing was removed.
	Logout() bool
}

// Verdict is the result category of a login attempt.
type Verdict int

// Login verdicts.
const (
	// Declined means the authenticator does not handle the credential.
	Declined Verdict = iota
	// Rejected means the credential was checked and is wrong.
	Rejected
	// Accepted means the credential was verified.
	Accepted
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Declined:
		return "declined"
	case Rejected:
		return "rejected"
	case Accepted:
		return "accepted"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Outcome is the result of Authenticator.Login.
type Outcome struct {
	Verdict Verdict
	// Identity is set only when Verdict is Accepted.
	Identity *Identity
	// Reason optionally explains a Declined or Rejected verdict. It is for logs only.
	Reason error
}

// Decline returns a Declined outcome.
func Decline(reason error) Outcome {
	return Outcome{Verdict: Declined, Reason: reason}
}

// Reject returns a Rejected outcome.
func Reject(reason error) Outcome {
	return Outcome{Verdict: Rejected, Reason: reason}
}

// Accept returns an Accepted outcome for identity.
func Accept(identity *Identity) Outcome {
	return Outcome{Verdict: Accepted, Identity: identity}
}

// IsAccepted reports whether the outcome carries a verified identity.
func (o Outcome) IsAccepted() bool {
	return o.Verdict == Accepted && o.Identity != nil
}

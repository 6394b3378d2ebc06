package auth

import "errors"

// Authentication errors.
var (
	// ErrNoCredentials is returned when a subject carries no credential to verify.
	ErrNoCredentials = errors.New("no credentials")

	// ErrUnsupportedCredentialKind is returned when no authenticator is registered for a kind.
	ErrUnsupportedCredentialKind = errors.New("unsupported credential kind")

	// ErrAuthenticationFailed is returned when every authenticator declined or rejected.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrLogoutFailed is returned when no authenticator could log the subject out.
	ErrLogoutFailed = errors.New("logout failed")

	// ErrAuthenticatorConstruction is returned when an authenticator factory fails.
	ErrAuthenticatorConstruction = errors.New("authenticator construction failed")

	// ErrMalformedCredential is returned when a credential cannot be parsed.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrCredentialRejected is returned by a VerifyFunc to reject a credential.
	ErrCredentialRejected = errors.New("credential rejected")

	// ErrNotInitialized is returned when Login is called before Initialize.
	ErrNotInitialized = errors.New("authenticator not initialized")
)

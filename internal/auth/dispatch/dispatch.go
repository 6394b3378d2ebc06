// Package dispatch runs the login and logout protocol of the authenticators registered for
// the kind of a subject's credential.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/logger"
	"github.com/vyrodovalexey/repogate/internal/metrics"
	"github.com/vyrodovalexey/repogate/internal/telemetry"
)

// State is a step of a dispatched login.
type State string

// Dispatch states.
const (
	StateStart                State = "start"
	StateCredentialsExtracted State = "credentials_extracted"
	StateMatching             State = "matching"
	StateSucceeded            State = "succeeded"
	StateExhausted            State = "exhausted"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultError   = "error"
)

// Resolver returns the authenticators of a kind for an execution context.
type Resolver interface {
	Resolve(kind auth.Kind, id execution.ID) ([]auth.Authenticator, error)
}

// Dispatcher is safe for concurrent use as long as each execution context uses its own subject.
type Dispatcher struct {
	resolver Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates a dispatcher over the authenticators of resolver.
func New(resolver Resolver, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		logger:   logger.Named("auth_dispatcher"),
		tracer:   telemetry.Tracer("dispatch"),
	}
}

// Login authenticates subject with its private credential. The subject must carry exactly
// one private credential; only the first one is considered.
//
// The authenticators of the credential kind are tried in registration order and the first one
// that accepts and commits wins. Returned errors wrap auth.ErrNoCredentials,
// auth.ErrUnsupportedCredentialKind, auth.ErrAuthenticationFailed, or the error of the
// authenticator or backend that aborted the attempt.
func (d *Dispatcher) Login(ctx context.Context, subject *auth.Subject) (*auth.Identity, error) {
	ctx, span := d.tracer.Start(ctx, "auth.Login")
	defer span.End()

	id, err := execution.MustFromContext(ctx)
	if err != nil {
		return nil, d.fail(span, err)
	}
	log := d.logger.With(logger.ExecutionField(id))
	log.Debug("dispatching login", zap.String("state", string(StateStart)))

	creds := subject.PrivateCredentials()
	if len(creds) == 0 {
		return nil, d.fail(span, auth.ErrNoCredentials)
	}
	credential := creds[0]
	kind := credential.Kind()
	span.SetAttributes(attribute.String("auth.kind", kind.String()))
	log = log.With(zap.String("kind", kind.String()))
	log.Debug("credential extracted", zap.String("state", string(StateCredentialsExtracted)))

	authenticators, err := d.resolver.Resolve(kind, id)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues(kind.String(), resultError).Inc()
		return nil, d.fail(span, fmt.Errorf("resolving %s authenticators: %w", kind, err))
	}
	if len(authenticators) == 0 {
		metrics.AuthAttemptsTotal.WithLabelValues(kind.String(), resultFailure).Inc()
		return nil, d.fail(span, fmt.Errorf("%w: %s", auth.ErrUnsupportedCredentialKind, kind))
	}

	log.Debug("matching authenticators",
		zap.String("state", string(StateMatching)),
		zap.Int("candidates", len(authenticators)),
	)

	for i, a := range authenticators {
		a.Initialize(subject, credential)

		outcome, loginErr := a.Login(ctx)
		if loginErr != nil {
			log.Warn("authenticator failed", zap.Int("position", i+1), zap.Error(loginErr))
			metrics.AuthAttemptsTotal.WithLabelValues(kind.String(), resultError).Inc()
			return nil, d.fail(span, fmt.Errorf("%s authenticator #%d: %w", kind, i+1, loginErr))
		}

		if !outcome.IsAccepted() {
			log.Debug("authenticator did not accept",
				zap.Int("position", i+1),
				zap.Stringer("verdict", outcome.Verdict),
				zap.NamedError("reason", outcome.Reason),
			)
			continue
		}

		if !a.Commit() {
			log.Debug("authenticator did not commit", zap.Int("position", i+1))
			continue
		}

		log.Info("login succeeded",
			zap.String("state", string(StateSucceeded)),
			zap.Int("position", i+1),
			zap.String("principal", outcome.Identity.Name),
		)
		metrics.AuthAttemptsTotal.WithLabelValues(kind.String(), resultSuccess).Inc()
		span.SetStatus(codes.Ok, "")
		return outcome.Identity, nil
	}

	log.Info("login failed", zap.String("state", string(StateExhausted)))
	metrics.AuthAttemptsTotal.WithLabelValues(kind.String(), resultFailure).Inc()
	return nil, d.fail(span, fmt.Errorf("%w: %s credential", auth.ErrAuthenticationFailed, kind))
}

// Logout undoes the login of subject. The kind is taken from the private credential when one
// is left, otherwise from the authentication method of the first principal.
func (d *Dispatcher) Logout(ctx context.Context, subject *auth.Subject) error {
	ctx, span := d.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	id, err := execution.MustFromContext(ctx)
	if err != nil {
		return d.fail(span, err)
	}

	var credential auth.Credential
	var kind auth.Kind
	if creds := subject.PrivateCredentials(); len(creds) > 0 {
		credential = creds[0]
		kind = credential.Kind()
	} else if principals := subject.Principals(); len(principals) > 0 {
		kind = principals[0].AuthMethod
	} else {
		return d.fail(span, auth.ErrNoCredentials)
	}
	span.SetAttributes(attribute.String("auth.kind", kind.String()))

	authenticators, err := d.resolver.Resolve(kind, id)
	if err != nil {
		metrics.AuthLogoutsTotal.WithLabelValues(kind.String(), resultError).Inc()
		return d.fail(span, fmt.Errorf("resolving %s authenticators: %w", kind, err))
	}

	for _, a := range authenticators {
		a.Initialize(subject, credential)
		if a.Logout() {
			d.logger.Debug("logout succeeded",
				logger.ExecutionField(id),
				zap.String("kind", kind.String()),
			)
			metrics.AuthLogoutsTotal.WithLabelValues(kind.String(), resultSuccess).Inc()
			return nil
		}
	}

	metrics.AuthLogoutsTotal.WithLabelValues(kind.String(), resultFailure).Inc()
	return d.fail(span, fmt.Errorf("%w: %s", auth.ErrLogoutFailed, kind))
}

// fail records err on span and returns it.
func (d *Dispatcher) fail(span trace.Span, err error) error {
	if !errors.Is(err, auth.ErrAuthenticationFailed) {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}

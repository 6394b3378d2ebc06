package oidc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/retry"
)

const healthCheckTimeout = 5 * time.Second

// TokenVerifier defines the interface for verifying OIDC tokens.
type TokenVerifier interface {
	// Verify verifies the raw ID token string and returns the parsed token.
	Verify(ctx context.Context, rawIDToken string) (*gooidc.IDToken, error)
}

// Provider is a discovered OIDC issuer.
type Provider struct {
	issuer   string
	verifier TokenVerifier
	client   *http.Client
	healthy  atomic.Bool
	logger   *zap.Logger
}

// NewProvider discovers the issuer of cfg and builds an ID token verifier with JWKS caching.
// Discovery is retried with exponential backoff.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	log := logger.Named("oidc_provider")

	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = retry.DefaultConfig()
	}

	var provider *gooidc.Provider
	err := retry.Do(ctx, retryCfg, log, "OIDC discovery", func() error {
		var discoverErr error
		provider, discoverErr = gooidc.NewProvider(ctx, cfg.IssuerURL)
		return discoverErr
	})
	if err != nil {
		return nil, err
	}

	log.Info("OIDC provider initialized",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID),
	)

	p := &Provider{
		issuer:   cfg.IssuerURL,
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:   http.DefaultClient,
		logger:   log,
	}
	p.healthy.Store(true)
	return p, nil
}

// Verifier returns the OIDC ID token verifier.
func (p *Provider) Verifier() TokenVerifier {
	return p.verifier
}

// Healthy checks that the discovery document of the issuer is still reachable.
func (p *Provider) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := p.probe(ctx)
	wasHealthy := p.healthy.Swap(err == nil)
	switch {
	case err != nil && wasHealthy:
		p.logger.Warn("OIDC provider unreachable", zap.String("issuer", p.issuer), zap.Error(err))
	case err == nil && !wasHealthy:
		p.logger.Info("OIDC provider recovered", zap.String("issuer", p.issuer))
	}
	return err
}

func (p *Provider) probe(ctx context.Context) error {
	url := strings.TrimSuffix(p.issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("building discovery request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery document returned status %d", resp.StatusCode)
	}
	return nil
}

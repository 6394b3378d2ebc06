package directory_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/directory"
	"github.com/vyrodovalexey/repogate/internal/retry"
)

// vaultResponse wraps a Vault API response.
type vaultResponse struct {
	Data map[string]any `json:"data"`
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// newVaultServer serves KV v2 secrets keyed by token hash under secret/data/repogate/tokens.
func newVaultServer(t *testing.T, secrets map[string]map[string]any, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"errors":["sealed"]}`))
			return
		}
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/repogate/tokens/")
		data, ok := secrets[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vaultResponse{Data: map[string]any{
			"data":     data,
			"metadata": map[string]any{"version": 1},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newVaultResolver(t *testing.T, addr, token string) *directory.VaultTokenResolver {
	t.Helper()

	resolver, err := directory.NewVaultTokenResolver(directory.VaultConfig{
		Address: addr,
		Token:   token,
		Mount:   "secret",
		Prefix:  "repogate/tokens",
		Retry: retry.Config{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	return resolver
}

func TestNewVaultTokenResolver_Validation(t *testing.T) {
	_, err := directory.NewVaultTokenResolver(directory.VaultConfig{Mount: "secret"}, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault address is required")

	_, err = directory.NewVaultTokenResolver(directory.VaultConfig{Address: "http://127.0.0.1:8200"}, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault KV mount is required")
}

func TestVaultTokenResolver_ResolveToken(t *testing.T) {
	secrets := map[string]map[string]any{
		tokenHash("tok-alice"):   {"user_id": "1", "resource_path": "/attachments"},
		tokenHash("tok-ghost"):   {"user_id": "42"},
		tokenHash("tok-noowner"): {"resource_path": "/x"},
	}
	srv, _ := newVaultServer(t, secrets, 0)
	resolver := newVaultResolver(t, srv.URL, "root")

	tests := []struct {
		name     string
		token    string
		wantErr  error
		wantUser string
		wantPath string
	}{
		{name: "known token", token: "tok-alice", wantUser: "1", wantPath: "/attachments"},
		{name: "unknown token", token: "tok-unknown", wantErr: directory.ErrTokenNotFound},
		{name: "owner no longer exists", token: "tok-ghost", wantErr: directory.ErrTokenNotFound},
		{name: "secret without owner", token: "tok-noowner", wantErr: directory.ErrTokenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			grant, err := resolver.ResolveToken(context.Background(), tt.token)

			// Assert
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, grant.User.ID)
			assert.Equal(t, tt.wantPath, grant.ResourcePath)
		})
	}
}

func TestVaultTokenResolver_RetriesTransientFailures(t *testing.T) {
	// Arrange
	secrets := map[string]map[string]any{tokenHash("tok-alice"): {"user_id": "1"}}
	srv, calls := newVaultServer(t, secrets, 2)
	resolver := newVaultResolver(t, srv.URL, "root")

	// Act
	grant, err := resolver.ResolveToken(context.Background(), "tok-alice")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "1", grant.User.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestVaultTokenResolver_PermissionDeniedIsNotRetried(t *testing.T) {
	// Arrange
	srv, calls := newVaultServer(t, nil, 0)
	resolver := newVaultResolver(t, srv.URL, "wrong-token")

	// Act
	_, err := resolver.ResolveToken(context.Background(), "tok-alice")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading token from vault")
	assert.NotErrorIs(t, err, directory.ErrTokenNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestVaultTokenResolver_Healthy(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		closed      bool
		errContains string
	}{
		{name: "unsealed", body: `{"initialized":true,"sealed":false,"standby":false}`},
		{name: "sealed", body: `{"initialized":true,"sealed":true}`, errContains: "sealed=true"},
		{name: "uninitialized", body: `{"initialized":false,"sealed":true}`, errContains: "initialized=false"},
		{name: "unreachable", closed: true, errContains: "checking vault health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/sys/health" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			resolver := newVaultResolver(t, srv.URL, "root")
			if tt.closed {
				srv.Close()
			} else {
				t.Cleanup(srv.Close)
			}

			// Act
			err := resolver.Healthy(context.Background())

			// Assert
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

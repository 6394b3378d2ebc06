package password_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/auth/password"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// countingStore counts backend calls and can fail them.
type countingStore struct {
	directory.Store
	calls int
	err   error
}

func (s *countingStore) Authenticate(ctx context.Context, login, domainID, pwd string) (*directory.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.Authenticate(ctx, login, domainID, pwd)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()

	mem := directory.NewMemoryStore(directory.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, mem.AddUser(directory.User{ID: "1", Login: "alice", DomainID: "0", FirstName: "Alice"}, "secret"))
	require.NoError(t, mem.AddUser(directory.User{ID: "2", Login: "bob", DomainID: "1", State: directory.StateDeleted}, "pw"))
	return &countingStore{Store: mem}
}

func TestAuthenticator_Login(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		password    string
		backendErr  error
		wantVerdict auth.Verdict
		wantErr     error
		wantCalls   int
	}{
		{name: "valid", userID: "alice@domain0", password: "secret", wantVerdict: auth.Accepted, wantCalls: 1},
		{name: "wrong password", userID: "alice@domain0", password: "nope", wantVerdict: auth.Rejected, wantCalls: 1},
		{name: "wrong domain", userID: "alice@domain1", password: "secret", wantVerdict: auth.Rejected, wantCalls: 1},
		{name: "deleted user", userID: "bob@domain1", password: "pw", wantVerdict: auth.Rejected, wantCalls: 1},
		{name: "missing separator", userID: "alice", password: "secret", wantErr: auth.ErrMalformedCredential},
		{name: "extra separator", userID: "alice@domain0@domain1", password: "secret", wantErr: auth.ErrMalformedCredential},
		{name: "absent user id", userID: "", password: "secret", wantErr: auth.ErrMalformedCredential},
		{
			name:       "backend failure",
			userID:     "alice@domain0",
			password:   "secret",
			backendErr: errors.New("connection refused"),
			wantErr:    errors.New("connection refused"),
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store := newStore(t)
			store.err = tt.backendErr
			a := password.New(store, zap.NewNop())
			cred := &auth.PasswordCredential{UserID: tt.userID, Password: tt.password}
			a.Initialize(auth.NewSubject(cred), cred)

			// Act
			outcome, err := a.Login(context.Background())

			// Assert
			assert.Equal(t, tt.wantCalls, store.calls)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, outcome.Verdict)
			if tt.wantVerdict == auth.Accepted {
				assert.Equal(t, "1", outcome.Identity.User.ID)
				assert.Equal(t, "Alice", outcome.Identity.Name)
				assert.Equal(t, auth.KindPassword, outcome.Identity.AuthMethod)
			}
		})
	}
}

func TestAuthenticator_DeclinesOtherKinds(t *testing.T) {
	a := password.New(newStore(t), zap.NewNop())
	cred := &auth.TokenCredential{Token: "x"}
	a.Initialize(auth.NewSubject(cred), cred)

	outcome, err := a.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, auth.Declined, outcome.Verdict)
}

func TestFactory(t *testing.T) {
	first, err := password.Factory(newStore(t), zap.NewNop())()
	require.NoError(t, err)
	second, err := password.Factory(newStore(t), zap.NewNop())()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, []auth.Kind{auth.KindPassword}, first.Kinds())

	_, err = password.Factory(nil, zap.NewNop())()
	require.Error(t, err)
}

package directory

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store and TokenResolver.
type MemoryStore struct {
	mu     sync.RWMutex
	cost   int
	byID   map[string]*User
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	userID       string
	resourcePath string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithBcryptCost overrides the bcrypt cost used by AddUser.
func WithBcryptCost(cost int) MemoryOption {
	return func(s *MemoryStore) {
		s.cost = cost
	}
}

// NewMemoryStore creates an empty in-memory directory.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cost:   DefaultBcryptCost,
		byID:   make(map[string]*User),
		tokens: make(map[string]tokenEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser stores a copy of the user. A non-empty password is hashed and replaces
// user.PasswordHash.
func (s *MemoryStore) AddUser(user User, password string) error {
	if user.ID == "" || user.Login == "" {
		return fmt.Errorf("user ID and login are required")
	}

	if password != "" {
		hash, err := HashPassword(password, s.cost)
		if err != nil {
			return fmt.Errorf("hashing password of user %s: %w", user.ID, err)
		}
		user.PasswordHash = hash
	}
	if user.State == "" {
		user.State = StateValid
	}
	user.System = false

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	for _, u := range s.byID {
		if u.Login == user.Login && u.DomainID == user.DomainID {
			return fmt.Errorf("login %s already exists in domain %s", user.Login, user.DomainID)
		}
	}
	s.byID[user.ID] = &user
	return nil
}

// AddToken registers an API token owned by userID, optionally scoped to resourcePath.
func (s *MemoryStore) AddToken(token, userID, resourcePath string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[userID]; !ok {
		return fmt.Errorf("token owner %s: %w", userID, ErrUserNotFound)
	}
	s.tokens[token] = tokenEntry{userID: userID, resourcePath: resourcePath}
	return nil
}

// Authenticate implements Store.
func (s *MemoryStore) Authenticate(_ context.Context, login, domainID, password string) (*User, error) {
	s.mu.RLock()
	user := s.findByLogin(login, domainID)
	s.mu.RUnlock()

	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.CanSignIn() {
		return nil, ErrUserDisabled
	}
	return user, nil
}

// UserByID implements Store.
func (s *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	if id == systemUserID {
		return SystemUser(), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UserByLogin implements Store.
func (s *MemoryStore) UserByLogin(_ context.Context, login, domainID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.findByLogin(login, domainID)
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ResolveToken implements TokenResolver.
func (s *MemoryStore) ResolveToken(_ context.Context, token string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	user, ok := s.byID[entry.userID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &Grant{User: user, ResourcePath: entry.resourcePath}, nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// findByLogin must be called with s.mu held.
func (s *MemoryStore) findByLogin(login, domainID string) *User {
	for _, u := range s.byID {
		if u.Login == login && u.DomainID == domainID {
			return u
		}
	}
	return nil
}

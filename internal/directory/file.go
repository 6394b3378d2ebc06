package directory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout of a directory seed.
type seedFile struct {
	Users  []seedUser  `yaml:"users"`
	Tokens []seedToken `yaml:"tokens"`
}

type seedUser struct {
	User `yaml:",inline"`
	// Password is a plaintext password hashed on load; PasswordHash wins when both are set.
	Password string `yaml:"password"`
}

type seedToken struct {
	Token        string `yaml:"token"`
	UserID       string `yaml:"user_id"`
	ResourcePath string `yaml:"resource_path"`
}

// LoadFile reads a YAML seed file into a new MemoryStore.
//
// Example:
//
//	users:
//	  - id: "1"
//	    login: alice
//	    domain_id: "0"
//	    first_name: Alice
//	    password_hash: "$2a$10$..."
//	tokens:
//	  - token: 0b5c...
//	    user_id: "1"
//	    resource_path: /attachments
func LoadFile(path string, opts ...MemoryOption) (*MemoryStore, error) {
	cleanPath := filepath.Clean(path)
	//nolint:gosec // trusted configuration path
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("reading directory file %s: %w", cleanPath, err)
	}
	return Load(data, opts...)
}

// Load parses YAML seed data into a new MemoryStore.
func Load(data []byte, opts ...MemoryOption) (*MemoryStore, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing directory seed: %w", err)
	}

	store := NewMemoryStore(opts...)
	for i, u := range seed.Users {
		password := u.Password
		if u.PasswordHash != "" {
			password = ""
		}
		if err := store.AddUser(u.User, password); err != nil {
			return nil, fmt.Errorf("loading user #%d: %w", i, err)
		}
	}
	for i, t := range seed.Tokens {
		if err := store.AddToken(t.Token, t.UserID, t.ResourcePath); err != nil {
			return nil, fmt.Errorf("loading token #%d: %w", i, err)
		}
	}

	return store, nil
}

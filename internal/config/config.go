// Package config provides configuration management for the repogate server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default configuration values.
	defaultGRPCPort         = 50051
	defaultMetricsPort      = 9090
	defaultLogLevel         = "info"
	defaultShutdownTimeout  = 30 * time.Second
	defaultEnableReflection = true

	// Default repository values.
	defaultRepositoryName      = "repogate"
	defaultRepositoryWorkspace = "default"

	// Default Vault values.
	defaultVaultKVMount     = "secret"
	defaultVaultTokenPrefix = "repogate/tokens"

	// Default OIDC values.
	defaultOIDCUsernameClaim = "preferred_username"
	defaultOIDCDomainID      = "0"

	// Environment variable names.
	envGRPCPort         = "GRPC_PORT"
	envMetricsPort      = "METRICS_PORT"
	envLogLevel         = "LOG_LEVEL"
	envShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	envEnableReflection = "ENABLE_REFLECTION"

	// Repository environment variable names.
	envRepositoryName             = "REPOSITORY_NAME"
	envRepositoryWorkspaces       = "REPOSITORY_WORKSPACES"
	envRepositoryDefaultWorkspace = "REPOSITORY_DEFAULT_WORKSPACE"

	// Directory environment variable names.
	envDirectoryFile = "DIRECTORY_FILE"

	// Vault environment variable names.
	envVaultEnabled       = "VAULT_ENABLED"
	envVaultAddr          = "VAULT_ADDR"
	envVaultToken         = "VAULT_TOKEN"
	envVaultTokenFilePath = "VAULT_TOKEN_FILE"
	envVaultKVMount       = "VAULT_KV_MOUNT"
	envVaultTokenPrefix   = "VAULT_TOKEN_PREFIX"

	// OIDC environment variable names.
	envOIDCEnabled        = "OIDC_ENABLED"
	envOIDCIssuerURL      = "OIDC_ISSUER_URL"
	envOIDCClientID       = "OIDC_CLIENT_ID"
	envOIDCUsernameClaim  = "OIDC_USERNAME_CLAIM"
	envOIDCDomainID       = "OIDC_DOMAIN_ID"
	envOIDCRequiredClaims = "OIDC_REQUIRED_CLAIMS"

	// TLS environment variable names.
	envTLSEnabled      = "TLS_ENABLED"
	envTLSCertFile     = "TLS_CERT_FILE"
	envTLSKeyFile      = "TLS_KEY_FILE"
	envTLSClientCAFile = "TLS_CLIENT_CA_FILE"

	// OTEL environment variable names.
	envOTELEnabled     = "OTEL_ENABLED"
	envOTELEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTELServiceName = "OTEL_SERVICE_NAME"

	// Port range limits.
	minPort = 1
	maxPort = 65535

	// sensitiveValueMask is used to mask sensitive values in String() output.
	sensitiveValueMask = "****"
)

// Config holds the server configuration.
type Config struct {
	GRPCPort         int
	MetricsPort      int
	LogLevel         string
	ShutdownTimeout  time.Duration
	EnableReflection bool
	Repository       RepositoryConfig
	Directory        DirectoryConfig
	Vault            VaultConfig
	OIDC             OIDCConfig
	TLS              TLSConfig
	OTEL             OTELConfig
}

// RepositoryConfig describes the repository engine.
type RepositoryConfig struct {
	Name             string
	Workspaces       []string
	DefaultWorkspace string
}

// DirectoryConfig locates the user directory seed.
type DirectoryConfig struct {
	// File is a YAML seed of users and tokens. Empty means an empty directory.
	File string
}

// VaultConfig holds the Vault KV settings used to resolve API tokens.
type VaultConfig struct {
	Enabled     bool
	Addr        string
	Token       string
	KVMount     string
	TokenPrefix string
}

// OIDCConfig holds OpenID Connect token verification settings.
type OIDCConfig struct {
	Enabled        bool
	IssuerURL      string
	ClientID       string
	UsernameClaim  string
	DomainID       string
	RequiredClaims string
}

// TLSConfig holds the gRPC listener certificates. ClientCAFile enables mutual TLS.
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Validation errors.
var (
	ErrInvalidGRPCPort         = errors.New("invalid gRPC port: must be between 1 and 65535")
	ErrInvalidMetricsPort      = errors.New("invalid metrics port: must be between 1 and 65535")
	ErrInvalidLogLevel         = errors.New("invalid log level: must be one of debug, info, warn, error")
	ErrInvalidShutdownTimeout  = errors.New("invalid shutdown timeout: must be positive")
	ErrPortConflict            = errors.New("gRPC port and metrics port must be different")
	ErrNoWorkspaces            = errors.New("at least one repository workspace is required")
	ErrUnknownDefaultWorkspace = errors.New("default workspace must be one of the repository workspaces")
	ErrVaultAddrRequired       = errors.New("Vault address is required when Vault is enabled")
	ErrVaultTokenRequired      = errors.New("Vault token is required when Vault is enabled")
	ErrOIDCIssuerRequired      = errors.New("OIDC issuer URL is required when OIDC is enabled")
	ErrOIDCClientIDRequired    = errors.New("OIDC client ID is required when OIDC is enabled")
	ErrTLSCertRequired         = errors.New("TLS certificate and key files are required when TLS is enabled")
)

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		GRPCPort:         defaultGRPCPort,
		MetricsPort:      defaultMetricsPort,
		LogLevel:         defaultLogLevel,
		ShutdownTimeout:  defaultShutdownTimeout,
		EnableReflection: defaultEnableReflection,
		Repository: RepositoryConfig{
			Name:       defaultRepositoryName,
			Workspaces: []string{defaultRepositoryWorkspace},
		},
		Vault: VaultConfig{
			KVMount:     defaultVaultKVMount,
			TokenPrefix: defaultVaultTokenPrefix,
		},
		OIDC: OIDCConfig{
			UsernameClaim: defaultOIDCUsernameClaim,
			DomainID:      defaultOIDCDomainID,
		},
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadBaseEnv(); err != nil {
		return err
	}

	c.loadRepositoryEnv()

	if err := c.loadVaultEnv(); err != nil {
		return err
	}

	if err := c.loadOIDCEnv(); err != nil {
		return err
	}

	if err := c.loadTLSEnv(); err != nil {
		return err
	}

	return c.loadOTELEnv()
}

// loadBaseEnv loads base server configuration from environment variables.
func (c *Config) loadBaseEnv() error {
	var err error

	if c.GRPCPort, err = intEnv(envGRPCPort, c.GRPCPort); err != nil {
		return err
	}

	if c.MetricsPort, err = intEnv(envMetricsPort, c.MetricsPort); err != nil {
		return err
	}

	if val := os.Getenv(envLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(envShutdownTimeout); val != "" {
		timeout, parseErr := time.ParseDuration(val)
		if parseErr != nil {
			return fmt.Errorf("parsing %s: %w", envShutdownTimeout, parseErr)
		}
		c.ShutdownTimeout = timeout
	}

	c.EnableReflection, err = boolEnv(envEnableReflection, c.EnableReflection)
	return err
}

// loadRepositoryEnv loads repository and directory settings from environment variables.
func (c *Config) loadRepositoryEnv() {
	if val := os.Getenv(envRepositoryName); val != "" {
		c.Repository.Name = val
	}

	if val := os.Getenv(envRepositoryWorkspaces); val != "" {
		c.Repository.Workspaces = splitList(val)
	}

	if val := os.Getenv(envRepositoryDefaultWorkspace); val != "" {
		c.Repository.DefaultWorkspace = val
	}

	if val := os.Getenv(envDirectoryFile); val != "" {
		c.Directory.File = val
	}
}

// loadVaultEnv loads Vault configuration from environment variables.
func (c *Config) loadVaultEnv() error {
	var err error
	if c.Vault.Enabled, err = boolEnv(envVaultEnabled, c.Vault.Enabled); err != nil {
		return err
	}

	if val := os.Getenv(envVaultAddr); val != "" {
		c.Vault.Addr = val
	}

	if val := os.Getenv(envVaultToken); val != "" {
		c.Vault.Token = val
	} else if tokenFilePath := os.Getenv(envVaultTokenFilePath); tokenFilePath != "" {
		cleanPath := filepath.Clean(tokenFilePath)
		//nolint:gosec // trusted env var, cleaned path
		tokenBytes, readErr := os.ReadFile(cleanPath)
		if readErr != nil {
			return fmt.Errorf("reading vault token file %s: %w", cleanPath, readErr)
		}
		c.Vault.Token = strings.TrimSpace(string(tokenBytes))
	}

	if val := os.Getenv(envVaultKVMount); val != "" {
		c.Vault.KVMount = val
	}

	if val := os.Getenv(envVaultTokenPrefix); val != "" {
		c.Vault.TokenPrefix = val
	}

	return nil
}

// loadOIDCEnv loads OIDC configuration from environment variables.
func (c *Config) loadOIDCEnv() error {
	var err error
	if c.OIDC.Enabled, err = boolEnv(envOIDCEnabled, c.OIDC.Enabled); err != nil {
		return err
	}

	if val := os.Getenv(envOIDCIssuerURL); val != "" {
		c.OIDC.IssuerURL = val
	}

	if val := os.Getenv(envOIDCClientID); val != "" {
		c.OIDC.ClientID = val
	}

	if val := os.Getenv(envOIDCUsernameClaim); val != "" {
		c.OIDC.UsernameClaim = val
	}

	if val := os.Getenv(envOIDCDomainID); val != "" {
		c.OIDC.DomainID = val
	}

	if val := os.Getenv(envOIDCRequiredClaims); val != "" {
		c.OIDC.RequiredClaims = val
	}

	return nil
}

// loadTLSEnv loads listener TLS configuration from environment variables.
func (c *Config) loadTLSEnv() error {
	var err error
	if c.TLS.Enabled, err = boolEnv(envTLSEnabled, c.TLS.Enabled); err != nil {
		return err
	}

	if val := os.Getenv(envTLSCertFile); val != "" {
		c.TLS.CertFile = val
	}

	if val := os.Getenv(envTLSKeyFile); val != "" {
		c.TLS.KeyFile = val
	}

	if val := os.Getenv(envTLSClientCAFile); val != "" {
		c.TLS.ClientCAFile = val
	}

	return nil
}

// loadOTELEnv loads OpenTelemetry configuration from environment variables.
func (c *Config) loadOTELEnv() error {
	var err error
	if c.OTEL.Enabled, err = boolEnv(envOTELEnabled, c.OTEL.Enabled); err != nil {
		return err
	}

	if val := os.Getenv(envOTELEndpoint); val != "" {
		c.OTEL.Endpoint = val
	}

	if val := os.Getenv(envOTELServiceName); val != "" {
		c.OTEL.ServiceName = val
	}

	return nil
}

// applyDefaults fills values that depend on other settings.
// This is called after loading from environment and before validation.
func (c *Config) applyDefaults() {
	if c.Repository.DefaultWorkspace == "" && len(c.Repository.Workspaces) > 0 {
		c.Repository.DefaultWorkspace = c.Repository.Workspaces[0]
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.validateBase(); err != nil {
		return err
	}

	if err := c.validateRepository(); err != nil {
		return err
	}

	if err := c.validateVault(); err != nil {
		return err
	}

	if err := c.validateOIDC(); err != nil {
		return err
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return ErrTLSCertRequired
	}

	return nil
}

// validateBase validates base server configuration.
func (c *Config) validateBase() error {
	if c.GRPCPort < minPort || c.GRPCPort > maxPort {
		return ErrInvalidGRPCPort
	}

	if c.MetricsPort < minPort || c.MetricsPort > maxPort {
		return ErrInvalidMetricsPort
	}

	if c.GRPCPort == c.MetricsPort {
		return ErrPortConflict
	}

	if !isValidLogLevel(c.LogLevel) {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateRepository validates the workspace layout.
func (c *Config) validateRepository() error {
	if len(c.Repository.Workspaces) == 0 {
		return ErrNoWorkspaces
	}

	for _, w := range c.Repository.Workspaces {
		if w == c.Repository.DefaultWorkspace {
			return nil
		}
	}
	return ErrUnknownDefaultWorkspace
}

// validateVault validates Vault configuration.
func (c *Config) validateVault() error {
	if !c.Vault.Enabled {
		return nil
	}

	if c.Vault.Addr == "" {
		return ErrVaultAddrRequired
	}

	if c.Vault.Token == "" {
		return ErrVaultTokenRequired
	}

	return nil
}

// validateOIDC validates OIDC configuration.
func (c *Config) validateOIDC() error {
	if !c.OIDC.Enabled {
		return nil
	}

	if c.OIDC.IssuerURL == "" {
		return ErrOIDCIssuerRequired
	}

	if c.OIDC.ClientID == "" {
		return ErrOIDCClientIDRequired
	}

	return nil
}

// isValidLogLevel checks if the log level is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func intEnv(name string, def int) (int, error) {
	val := os.Getenv(name)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def, fmt.Errorf("parsing %s: %w", name, err)
	}
	return n, nil
}

func boolEnv(name string, def bool) (bool, error) {
	val := os.Getenv(name)
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def, fmt.Errorf("parsing %s: %w", name, err)
	}
	return b, nil
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String returns a string representation of the config, hiding sensitive data.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Config{GRPCPort: %d, MetricsPort: %d, LogLevel: %s, ShutdownTimeout: %s",
		c.GRPCPort,
		c.MetricsPort,
		c.LogLevel,
		c.ShutdownTimeout,
	)

	fmt.Fprintf(&sb, ", Repository: %s, Workspaces: %s, DefaultWorkspace: %s",
		c.Repository.Name,
		strings.Join(c.Repository.Workspaces, ","),
		c.Repository.DefaultWorkspace,
	)

	if c.Directory.File != "" {
		fmt.Fprintf(&sb, ", DirectoryFile: %s", c.Directory.File)
	}

	if c.Vault.Enabled {
		fmt.Fprintf(&sb, ", Vault: enabled, VaultAddr: %s, VaultToken: %s, VaultKVMount: %s",
			c.Vault.Addr, sensitiveValueMask, c.Vault.KVMount)
	} else {
		sb.WriteString(", Vault: disabled")
	}

	if c.OIDC.Enabled {
		fmt.Fprintf(&sb, ", OIDC: enabled, OIDCIssuer: %s, OIDCClientID: %s, OIDCUsernameClaim: %s",
			c.OIDC.IssuerURL, sensitiveValueMask, c.OIDC.UsernameClaim)
	}

	if c.TLS.Enabled {
		fmt.Fprintf(&sb, ", TLS: enabled, MutualTLS: %t", c.TLS.ClientCAFile != "")
	}

	if c.OTEL.Enabled {
		fmt.Fprintf(&sb, ", OTEL: enabled, OTELEndpoint: %s, OTELServiceName: %s",
			c.OTEL.Endpoint, c.OTEL.ServiceName)
	}

	sb.WriteString("}")
	return sb.String()
}

// GRPCAddress returns the gRPC server address.
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

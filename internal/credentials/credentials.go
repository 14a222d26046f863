// Package credentials resolves and persists bearer tokens for linked
// accounts, using the OS keyring with fallback to environment variables and
// an interactive OAuth authorization flow.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source indicates where a credential was resolved from.
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceOAuth       Source = "oauth"
	SourceNone        Source = "none"
)

// ErrNotFound is returned when no credential source could produce a token
// and no interactive flow is configured.
var ErrNotFound = errors.New("credentials not found")

// Credential holds one account's bearer token. It begins not-ready and flips
// to ready exactly once, when a source resolves the token.
type Credential struct {
	accessToken string
	tokenType   string
	source      Source
	ready       bool
	onReady     []func()
}

// NewCredential returns a not-ready credential.
func NewCredential() *Credential {
	return &Credential{source: SourceNone}
}

func (c *Credential) Ready() bool         { return c.ready }
func (c *Credential) AccessToken() string { return c.accessToken }
func (c *Credential) TokenType() string   { return c.tokenType }
func (c *Credential) Source() Source      { return c.source }

// OnReady registers a callback fired synchronously when the credential
// resolves. A callback registered after resolution fires immediately.
func (c *Credential) OnReady(fn func()) {
	if c.ready {
		fn()
		return
	}
	c.onReady = append(c.onReady, fn)
}

// resolve marks the credential ready. Further calls are no-ops: a credential
// resolves at most once per account lifetime.
func (c *Credential) resolve(token, tokenType string, source Source) {
	if c.ready {
		return
	}
	c.accessToken = token
	c.tokenType = tokenType
	c.source = source
	c.ready = true
	for _, fn := range c.onReady {
		fn()
	}
}

// Manager resolves credentials for accounts. Resolution order: keyring,
// environment variable, interactive OAuth flow (when configured).
type Manager struct {
	keyring Keyring
	flow    *Flow
}

// ManagerOption is a functional option for Manager.
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation.
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithFlow sets the interactive authorization flow used when no stored
// credential exists.
func WithFlow(f *Flow) ManagerOption {
	return func(m *Manager) {
		m.flow = f
	}
}

// NewManager creates a credential manager backed by the system keyring.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// normalizeService normalizes service kinds to lowercase.
func normalizeService(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}

// keyringService returns the keyring service name for a service kind.
func keyringService(service string) string {
	return fmt.Sprintf("todosync-%s", normalizeService(service))
}

// Resolve fills the credential for one account, identified by its service
// kind and display name. Idempotent: a ready credential is returned as-is
// without re-prompting. On failure the credential stays not-ready and the
// error is reported; the account simply never reaches readiness.
func (m *Manager) Resolve(ctx context.Context, service, name string, cred *Credential) error {
	if cred.Ready() {
		return nil
	}
	service = normalizeService(service)
	if service == "" {
		return fmt.Errorf("%w: account has no service configured", ErrNotFound)
	}

	// Priority 1: stored secret
	token, err := m.keyring.Get(keyringService(service), name)
	if err == nil && token != "" {
		cred.resolve(token, "Bearer", SourceKeyring)
		return nil
	}

	// Priority 2: environment variable, e.g. TODOSYNC_TODOIST_TOKEN
	envKey := fmt.Sprintf("TODOSYNC_%s_TOKEN", strings.ToUpper(service))
	if token := os.Getenv(envKey); token != "" {
		cred.resolve(token, "Bearer", SourceEnvironment)
		return nil
	}

	// Priority 3: interactive authorization
	if m.flow == nil {
		return fmt.Errorf("%w for %s account %q", ErrNotFound, service, name)
	}
	tok, err := m.flow.Token(ctx)
	if err != nil {
		return fmt.Errorf("authorization failed for %s account %q: %w", service, name, err)
	}
	// Best effort: a keyring write failure must not lose the session token.
	_ = m.keyring.Set(keyringService(service), name, tok.AccessToken)

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	cred.resolve(tok.AccessToken, tokenType, SourceOAuth)
	return nil
}

// Store writes a token for an account directly into the keyring, bypassing
// the interactive flow (manual token entry).
func (m *Manager) Store(ctx context.Context, service, name, token string) error {
	return m.keyring.Set(keyringService(service), name, token)
}

// Delete removes a stored token. Idempotent: a missing entry is not an error.
func (m *Manager) Delete(ctx context.Context, service, name string) error {
	err := m.keyring.Delete(keyringService(service), name)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}

package credentials

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Todoist OAuth endpoints and the scope the sync engine needs.
const (
	DefaultAuthURL  = "https://todoist.com/oauth/authorize"
	DefaultTokenURL = "https://todoist.com/oauth/access_token"
	Scope           = "data:read_write,data:delete,project:delete"

	// Authorization is user-paced; the exchange is a single HTTP round trip.
	defaultAuthorizeTimeout = 5 * time.Minute
	defaultExchangeTimeout  = 30 * time.Second

	stateLength = 10
)

var (
	// ErrStateMismatch is returned when the identity provider's callback
	// carries a state that does not match the one generated for the attempt.
	// The exchange is aborted; the credential stays not-ready.
	ErrStateMismatch = errors.New("authorization state mismatch")

	// ErrCancelled is returned when the user abandons the authorization.
	ErrCancelled = errors.New("authorization cancelled")
)

// Authorizer presents an authorization URL to the user and returns the code
// and state from the provider's callback. Implementations may open a browser
// window or prompt on a terminal; cancellation is reported as ErrCancelled
// or a context error.
type Authorizer interface {
	Authorize(ctx context.Context, authURL string) (code, state string, err error)
}

// FlowConfig configures an authorization-code flow.
type FlowConfig struct {
	ClientID     string
	ClientSecret string

	// AuthURL and TokenURL override the Todoist endpoints (used by tests).
	AuthURL  string
	TokenURL string

	AuthorizeTimeout time.Duration
	ExchangeTimeout  time.Duration
}

// Flow drives one authorization-code exchange: synthesize the authorization
// URL with a fresh anti-forgery state, collect the code through the
// Authorizer, validate the returned state, and exchange the code for a token.
type Flow struct {
	cfg              *oauth2.Config
	authorizer       Authorizer
	authorizeTimeout time.Duration
	exchangeTimeout  time.Duration

	// newState is overridable in tests.
	newState func() (string, error)
}

// NewFlow creates a Flow.
func NewFlow(cfg FlowConfig, authorizer Authorizer) *Flow {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	authorizeTimeout := cfg.AuthorizeTimeout
	if authorizeTimeout == 0 {
		authorizeTimeout = defaultAuthorizeTimeout
	}
	exchangeTimeout := cfg.ExchangeTimeout
	if exchangeTimeout == 0 {
		exchangeTimeout = defaultExchangeTimeout
	}

	return &Flow{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Todoist expects client_id, client_secret and code
				// form-encoded in the POST body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		authorizer:       authorizer,
		authorizeTimeout: authorizeTimeout,
		exchangeTimeout:  exchangeTimeout,
		newState:         generateState,
	}
}

// Token runs the flow once and returns the exchanged token. All failure
// modes (cancel, state mismatch, rejected exchange) are recoverable errors;
// the caller retries only on explicit user action.
func (f *Flow) Token(ctx context.Context) (*oauth2.Token, error) {
	state, err := f.newState()
	if err != nil {
		return nil, err
	}
	authURL := f.cfg.AuthCodeURL(state)

	authCtx, cancel := context.WithTimeout(ctx, f.authorizeTimeout)
	defer cancel()
	code, gotState, err := f.authorizer.Authorize(authCtx, authURL)
	if err != nil {
		return nil, err
	}
	if gotState != state {
		return nil, ErrStateMismatch
	}

	exchangeCtx, cancelExchange := context.WithTimeout(ctx, f.exchangeTimeout)
	defer cancelExchange()
	tok, err := f.cfg.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange rejected: %w", err)
	}
	return tok, nil
}

// generateState produces the per-attempt anti-forgery token: 10 characters
// drawn from upper-case letters and digits.
func generateState() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

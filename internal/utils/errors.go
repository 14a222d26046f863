package utils

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrAccountNotFound returns an error for an unknown account uid.
func ErrAccountNotFound(uid string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("account not found: %s", uid),
		Suggestion: "Run 'todosync accounts list' to see linked accounts",
	}
}

// ErrUnknownService returns an error for an unrecognized service kind.
func ErrUnknownService(kind string, known []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("unknown service kind: %s", kind),
		Suggestion: fmt.Sprintf("Recognized services: %s", strings.Join(known, ", ")),
	}
}

// ErrAccountNotReady returns an error for an account whose credential is not
// resolved yet.
func ErrAccountNotReady(uid string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("account is not ready: %s", uid),
		Suggestion: fmt.Sprintf("Run 'todosync login %s' to authorize the account", uid),
	}
}

// ErrCredentialsNotFound returns an error when no credential source produced
// a token.
func ErrCredentialsNotFound(service, name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for %s account %s", service, name),
		Suggestion: fmt.Sprintf("Run 'todosync login' or set TODOSYNC_%s_TOKEN", strings.ToUpper(service)),
	}
}

// ErrRemoteRejected returns an error when the remote API refused an
// operation. The local mirror is untouched.
func ErrRemoteRejected(op string, err error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("remote %s failed: %w", op, err),
		Suggestion: getSmartSuggestion(err.Error()),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	if strings.Contains(lowerReason, "authentication failed") {
		return "Verify your credentials are correct and have not expired"
	}

	return "Check your internet connection and try again"
}

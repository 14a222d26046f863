package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorWithSuggestionUnwrap(t *testing.T) {
	base := errors.New("base failure")
	err := WrapWithSuggestion(base, "try again")

	if !errors.Is(err, base) {
		t.Error("wrapped error lost its chain")
	}
	var sugg *ErrorWithSuggestion
	if !errors.As(err, &sugg) {
		t.Fatal("errors.As failed")
	}
	if sugg.GetSuggestion() != "try again" {
		t.Errorf("suggestion = %q", sugg.GetSuggestion())
	}
	if !strings.Contains(err.Error(), "base failure") || !strings.Contains(err.Error(), "try again") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSmartSuggestions(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{"dial tcp: lookup api.todoist.com: no such host", "DNS"},
		{"connection refused", "server is running"},
		{"i/o timeout", "slow or unreachable"},
		{"authentication failed: invalid API token", "credentials"},
		{"something else entirely", "internet connection"},
	}
	for _, tc := range cases {
		err := ErrRemoteRejected("sync", fmt.Errorf("%s", tc.reason))
		var sugg *ErrorWithSuggestion
		if !errors.As(err, &sugg) {
			t.Fatalf("%q: not an ErrorWithSuggestion", tc.reason)
		}
		if !strings.Contains(sugg.GetSuggestion(), tc.want) {
			t.Errorf("%q: suggestion = %q, want mention of %q", tc.reason, sugg.GetSuggestion(), tc.want)
		}
	}
}

func TestErrAccountNotReadySuggestsLogin(t *testing.T) {
	err := ErrAccountNotReady("uid-1")
	if !strings.Contains(err.Error(), "login uid-1") {
		t.Errorf("Error() = %q", err.Error())
	}
}

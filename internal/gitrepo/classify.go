package gitrepo

import (
	"fmt"
	"strings"
)

// ErrorClass is the failure classification of a git operation. Errors are
// classified by message-pattern matching exactly once at the provider
// boundary and never re-classified downstream.
type ErrorClass int

const (
	// ClassUnknown covers failures that are neither network nor auth;
	// they abort immediately without retry.
	ClassUnknown ErrorClass = iota
	// ClassNetwork covers transient connectivity failures; they are
	// retried with backoff and then degrade to the offline cache.
	ClassNetwork
	// ClassAuth covers credential, permission and repository-access
	// failures; they are fatal and never retried.
	ClassAuth
)

// String returns a human-readable class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var networkPatterns = []string{
	"could not resolve host",
	"could not resolve hostname",
	"connection timed out",
	"connection refused",
	"connection reset",
	"network is unreachable",
	"operation timed out",
	"failed to connect",
	"could not read from remote repository",
	"the remote end hung up unexpectedly",
	"transfer closed",
	"gnutls recv error",
	"early eof",
	"context deadline exceeded",
}

var authPatterns = []string{
	"authentication failed",
	"permission denied",
	"access denied",
	"could not read username",
	"could not read password",
	"invalid username or password",
	"repository not found",
	"repository does not exist",
	"support for password authentication was removed",
	"http basic: access denied",
	"terminal prompts disabled",
	"fatal: unable to access",
	"the requested url returned error: 401",
	"the requested url returned error: 403",
}

// Classify inspects an error's message and assigns a failure class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	msg := strings.ToLower(err.Error())

	// Auth patterns win: an auth failure surfaced over the network must
	// never be retried.
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return ClassAuth
		}
	}
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return ClassNetwork
		}
	}
	return ClassUnknown
}

// AuthError is a fatal repository-access failure carrying remediation
// guidance for the user. It is never retried.
type AuthError struct {
	URL string
	Err error
}

// Error formats the failure with its remediation hint.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v\n%s", e.URL, e.Err, e.Remediation())
}

// Unwrap returns the underlying git error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Remediation returns actionable guidance for resolving the failure.
func (e *AuthError) Remediation() string {
	var b strings.Builder
	b.WriteString("Check that:\n")
	b.WriteString("  - the repository URL is correct and the repository exists\n")
	b.WriteString("  - your credentials grant read access\n")
	if strings.HasPrefix(e.URL, "https://") {
		b.WriteString("  - repository.auth.token_file points to a valid access token\n")
	} else {
		b.WriteString("  - repository.auth.ssh_key_file points to an authorized private key\n")
	}
	return b.String()
}

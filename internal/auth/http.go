// ABOUTME: Bearer-token extraction and request authentication
// ABOUTME: Shared by every endpoint that reads the Authorization header

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoBearerToken reports a request whose Authorization header carried no
// usable bearer token. Distinct from verification failures so callers can
// treat "no credentials" differently from "bad credentials".
var ErrNoBearerToken = errors.New("no bearer token")

// BearerToken extracts the bearer token from a request's Authorization
// header. Failures wrap ErrNoBearerToken with the specific reason.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrNoBearerToken)
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrNoBearerToken)
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrNoBearerToken)
	}
	return token, nil
}

// Authenticate extracts the bearer token and verifies it, returning the
// principal the token asserts.
func Authenticate(r *http.Request, verifier TokenVerifier) (string, error) {
	token, err := BearerToken(r)
	if err != nil {
		return "", err
	}
	return verifier.Verify(token)
}

// Package auth provides bearer-token authentication for cursor-gateway.
//
// # Authentication Method
//
// API clients authenticate with JWT tokens signed with HS256 using the
// configured jwt_secret. When no secret is configured, the gateway runs
// without authentication.
//
// # Token Verification
//
//	verifier := auth.NewJWTVerifier(secret)
//	principalID, err := verifier.Verify(tokenString)
//
// The principal ID comes from the "sub" claim. Tokens without a subject
// or past their expiry are rejected.
//
// # Request Authentication
//
// Authenticate resolves a request's Authorization header to a principal
// in one step; BearerToken does the extraction alone for callers that
// need the raw token. The MCP endpoint authenticates session initializes
// with Authenticate and binds sessions to their creating token via
// BearerToken. Extraction failures wrap ErrNoBearerToken, so callers can
// distinguish absent credentials from failed verification.
package auth

// Package auth issues and verifies the bearer tokens that guard the HTTP API.
//
// Tokens are HMAC-signed JWTs carrying a subject and a list of scopes such as
// "runs:read" or "runs:*". The server middleware verifies the token, stores
// the claims in the request context and checks the scope a route requires.
package auth

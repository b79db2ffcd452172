// Package auth provides accounts for the coven-chat front-end.
//
// # Accounts
//
// Service stores users with bcrypt password hashes. Emails are trimmed and
// lowercased before they are stored or looked up, and passwords shorter than
// MinPasswordLength are rejected.
//
// # Tokens
//
// SignIn creates an auth session row and returns an HS256 JWT:
//
//	{"sub": "<user id>", "jti": "<auth session id>", "iat": ..., "exp": ...}
//
// Verify checks the signature, the expiry, and that the auth session still
// exists. SignOut deletes the session, which revokes the token even though
// its signature stays valid until exp.
//
// # Token file
//
// TokenFile keeps the signed-in token between runs of the CLI. The
// COVEN_TOKEN environment variable takes precedence over the file.
package auth

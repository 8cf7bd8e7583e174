// Package session persists the signed-in session across CLI invocations.
//
// The backend issues short-lived access tokens with a refresh token. The
// Store keeps the latest session in a local SQLite database so a user who
// logged in yesterday does not have to log in again today: on startup the
// stored session is loaded, its access token inspected, and a refresh
// performed when it is close to expiry.
//
// Token inspection parses claims without verifying the signature. The
// signature belongs to the backend; locally the token is only a hint for
// the user id, email, and expiry.
package session

// Package gate decides whether an incoming request may reach the API.
//
// Three rules run for every request: a per-client token bucket, a
// User-Agent based bot classifier and a signature shield against common
// injection attacks. Their results are folded into a single Decision with
// rate limiting taking precedence over bot detection, and bot detection over
// the shield. The package knows nothing about gin; the HTTP adapter lives in
// internal/http/middleware.
package gate

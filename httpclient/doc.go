// Package httpclient provides an HTTP client with base URL resolution,
// default and per-request auth, and optional retry and circuit breaking via
// the resilience package. The REST-backed service adapters (remotecmd,
// dbserver clients) are built on it.
package httpclient

// Package testutil provides in-memory fakes for the connection layer:
// providers, connections, and observers that tests can script without
// touching real services.
package testutil

// Package database provides the connection provider for PostgreSQL targets,
// backed by pgxpool. A connection wraps one pool, pings it on creation, and
// exposes query and exec helpers for test steps that inspect or seed state.
package database

// Package dbserver implements the REST database gateway: a small Gin
// service that fronts a PostgreSQL instance with JWT-protected query and
// execute endpoints, for harness deployments where test steps cannot reach
// the database directly. The package also ships the matching client.
package dbserver

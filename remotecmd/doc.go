// Package remotecmd provides the connection provider for REST command
// endpoints: small agents running on target hosts that expose command
// execution over HTTP. A connection verifies the agent's health endpoint on
// creation and then executes named commands against it.
package remotecmd

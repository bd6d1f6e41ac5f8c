// Package sshexec provides the connection provider for SSH command
// execution on remote hosts, used for targets that expose a shell instead
// of a REST agent.
package sshexec

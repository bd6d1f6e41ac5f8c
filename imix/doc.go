// Package imix provides the connection provider for IMIX simulator
// endpoints, which speak JSON messages over a WebSocket. A connection logs
// on after dialing, buffers inbound messages on a channel, and keeps the
// link alive with pings while watching for staleness.
package imix

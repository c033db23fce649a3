// Package net provides the stream abstraction underneath the relay: a
// listener producing persistent, message-oriented connections. The relay and
// the client speak JSON envelopes over whatever StreamLayer is plugged in,
// plain TCP in production and an in-memory pipe in tests.
package net

import (
	"net"
	"time"
)

// Dialer opens outgoing connections to a relay.
type Dialer interface {
	// Dial is used to create a new outgoing connection
	Dial(address string, timeout time.Duration) (net.Conn, error)
}

// StreamLayer provides the low level stream abstraction used by the relay
// listener and by clients dialing in.
type StreamLayer interface {
	net.Listener
	Dialer
}

// TCPDialer implements the Dialer interface for plain TCP, for clients that
// only dial out and never listen.
type TCPDialer struct{}

// Dial implements the Dialer interface.
func (TCPDialer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

package net

import (
	"errors"
	"net"
	"sync"
	"time"
)

// ErrLayerClosed is returned when accepting or dialing on a closed
// InmemStreamLayer.
var ErrLayerClosed = errors.New("stream layer closed")

type inmemAddr struct{}

func (inmemAddr) Network() string { return "inmem" }
func (inmemAddr) String() string  { return "inmem" }

// InmemStreamLayer implements the StreamLayer interface over synchronous
// in-process pipes, so the relay can be tested without binding a port.
type InmemStreamLayer struct {
	mu       sync.Mutex
	accept   chan net.Conn
	closed   bool
	shutdown chan struct{}
}

// NewInmemStreamLayer returns a fresh in-memory stream layer.
func NewInmemStreamLayer() *InmemStreamLayer {
	return &InmemStreamLayer{
		accept:   make(chan net.Conn),
		shutdown: make(chan struct{}),
	}
}

// Dial implements the StreamLayer interface. The address is ignored; every
// dial connects to this layer's listener.
func (l *InmemStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	client, server := net.Pipe()

	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}

	select {
	case l.accept <- server:
		return client, nil
	case <-l.shutdown:
		client.Close()
		server.Close()
		return nil, ErrLayerClosed
	case <-timer:
		client.Close()
		server.Close()
		return nil, errors.New("dial timeout")
	}
}

// Accept implements the net.Listener interface.
func (l *InmemStreamLayer) Accept() (net.Conn, error) {
	select {
	case conn := <-l.accept:
		return conn, nil
	case <-l.shutdown:
		return nil, ErrLayerClosed
	}
}

// Close implements the net.Listener interface.
func (l *InmemStreamLayer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.shutdown)
	}
	return nil
}

// Addr implements the net.Listener interface.
func (l *InmemStreamLayer) Addr() net.Addr {
	return inmemAddr{}
}

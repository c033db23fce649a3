package relay

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/meshworks/tattle/src/wire"
)

const connBufSize = 65535

// conn wraps an accepted socket with buffered JSON encoding. Reads happen
// only from the connection's own goroutine; writes are serialized with a
// mutex because deliveries and presence notifications originate from other
// agents' goroutines.
type conn struct {
	id      string // correlation id for logs, before the agent has a name
	agentID string // set once a connect request is accepted
	sock    net.Conn

	r   *bufio.Reader
	w   *bufio.Writer
	dec *json.Decoder
	enc *json.Encoder

	writeLock sync.Mutex
}

func newConn(sock net.Conn) *conn {
	c := &conn{
		id:   uuid.New().String(),
		sock: sock,
		r:    bufio.NewReaderSize(sock, connBufSize),
		w:    bufio.NewWriterSize(sock, connBufSize),
	}
	c.dec = json.NewDecoder(c.r)
	c.enc = json.NewEncoder(c.w)
	return c
}

// read decodes the next request envelope. It blocks until an envelope
// arrives or the connection fails.
func (c *conn) read(req *wire.Request) error {
	return c.dec.Decode(req)
}

// Send implements registry.Sink.
func (c *conn) Send(resp *wire.Response) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.enc.Encode(resp); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close closes the underlying socket.
func (c *conn) Close() error {
	return c.sock.Close()
}

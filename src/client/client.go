// Package client implements the agent-side library for talking to a tattle
// relay: connecting under an agent id, sending mention/direct/broadcast
// messages, and querying the derived graph and centrality scores. Deliveries
// and presence notifications arrive asynchronously on the Events channel.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/wire"
	"github.com/sirupsen/logrus"
)

const bufSize = 65535

// ErrTimeout is returned when the relay does not answer a request in time.
var ErrTimeout = errors.New("request timed out")

// RelayError is an error response received from the relay.
type RelayError struct {
	Code    string
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a connection to a tattle relay acting as a single agent. A
// Client issues one request at a time; deliveries and presence notifications
// can arrive at any moment and are surfaced on Events.
type Client struct {
	agentID string
	timeout time.Duration
	logger  *logrus.Entry

	sock net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
	w    *bufio.Writer

	writeLock sync.Mutex

	acks   chan *wire.AckPayload
	errs   chan *wire.ErrorPayload
	graphs chan *wire.GraphPayload
	scores chan *wire.ScoresPayload
	lists  chan []string

	events chan *wire.Response

	knownLock sync.Mutex
	known     map[string]struct{}

	closeOnce sync.Once
	closedCh  chan struct{}
}

// Dial connects to the relay at addr through the given dialer and registers
// agentID. It fails with a RelayError carrying duplicate_agent when the id
// is already taken.
func Dial(dialer tnet.Dialer, addr, agentID string, timeout time.Duration, logger *logrus.Entry) (*Client, error) {
	sock, err := dialer.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}

	c := &Client{
		agentID:  agentID,
		timeout:  timeout,
		logger:   logger.WithField("agent", agentID),
		sock:     sock,
		dec:      json.NewDecoder(bufio.NewReaderSize(sock, bufSize)),
		w:        bufio.NewWriterSize(sock, bufSize),
		acks:     make(chan *wire.AckPayload, 1),
		errs:     make(chan *wire.ErrorPayload, 1),
		graphs:   make(chan *wire.GraphPayload, 1),
		scores:   make(chan *wire.ScoresPayload, 1),
		lists:    make(chan []string, 1),
		events:   make(chan *wire.Response, 64),
		known:    map[string]struct{}{},
		closedCh: make(chan struct{}),
	}
	c.enc = json.NewEncoder(c.w)

	go c.listen()

	if err := c.send(&wire.Request{Type: wire.Connect, AgentID: agentID}); err != nil {
		c.Close()
		return nil, err
	}

	// the relay answers a successful connect with the agent list
	if _, err := c.waitList(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// AgentID returns the id this client registered under.
func (c *Client) AgentID() string {
	return c.agentID
}

// Events is the stream of asynchronous envelopes: message deliveries,
// agent_joined and agent_left notifications. The channel is closed when the
// connection drops.
func (c *Client) Events() <-chan *wire.Response {
	return c.events
}

// Known returns the agent ids this client has learned about through agent
// lists and presence notifications, sorted.
func (c *Client) Known() []string {
	c.knownLock.Lock()
	defer c.knownLock.Unlock()

	res := make([]string, 0, len(c.known))
	for id := range c.known {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

// Mention sends a mention message naming the given agents. The returned ack
// carries the journal sequence number and the delivery outcome.
func (c *Client) Mention(mentions []string, content string) (*wire.AckPayload, error) {
	return c.sendMessage(&wire.Request{Type: wire.Mention, Mentions: mentions, Content: content})
}

// Direct sends a direct message to a single agent. An offline recipient
// shows up in the ack's Failed list; the message is journaled regardless.
func (c *Client) Direct(to, content string) (*wire.AckPayload, error) {
	return c.sendMessage(&wire.Request{Type: wire.Direct, To: to, Content: content})
}

// Broadcast sends a message to every other connected agent.
func (c *Client) Broadcast(content string) (*wire.AckPayload, error) {
	return c.sendMessage(&wire.Request{Type: wire.Broadcast, Content: content})
}

// Graph requests the mention graph derived from the relay's journal.
func (c *Client) Graph() (*wire.GraphPayload, error) {
	c.drainStale()
	if err := c.send(&wire.Request{Type: wire.GraphRequest}); err != nil {
		return nil, err
	}
	select {
	case g := <-c.graphs:
		return g, nil
	case e := <-c.errs:
		return nil, &RelayError{Code: e.Code, Message: e.Message}
	case <-time.After(c.timeout):
		return nil, ErrTimeout
	case <-c.closedCh:
		return nil, errors.New("connection closed")
	}
}

// Scores requests centrality scores derived from the relay's journal.
func (c *Client) Scores() (*wire.ScoresPayload, error) {
	c.drainStale()
	if err := c.send(&wire.Request{Type: wire.GetScores}); err != nil {
		return nil, err
	}
	select {
	case s := <-c.scores:
		return s, nil
	case e := <-c.errs:
		return nil, &RelayError{Code: e.Code, Message: e.Message}
	case <-time.After(c.timeout):
		return nil, ErrTimeout
	case <-c.closedCh:
		return nil, errors.New("connection closed")
	}
}

// List requests the ids of the currently connected agents.
func (c *Client) List() ([]string, error) {
	c.drainStale()
	if err := c.send(&wire.Request{Type: wire.List}); err != nil {
		return nil, err
	}
	return c.waitList()
}

// Close tears the connection down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closedCh)
		err = c.sock.Close()
	})
	return err
}

func (c *Client) sendMessage(req *wire.Request) (*wire.AckPayload, error) {
	c.drainStale()
	if err := c.send(req); err != nil {
		return nil, err
	}
	select {
	case ack := <-c.acks:
		return ack, nil
	case e := <-c.errs:
		return nil, &RelayError{Code: e.Code, Message: e.Message}
	case <-time.After(c.timeout):
		return nil, ErrTimeout
	case <-c.closedCh:
		return nil, errors.New("connection closed")
	}
}

// drainStale discards buffered replies left over from requests that already
// timed out. The client issues one request at a time, so anything sitting in
// a reply channel when a new request starts belongs to an abandoned one and
// must not be mistaken for the new answer.
func (c *Client) drainStale() {
	for {
		select {
		case <-c.acks:
		case <-c.errs:
		case <-c.graphs:
		case <-c.scores:
		case <-c.lists:
		default:
			return
		}
	}
}

func (c *Client) waitList() ([]string, error) {
	select {
	case agents := <-c.lists:
		return agents, nil
	case e := <-c.errs:
		return nil, &RelayError{Code: e.Code, Message: e.Message}
	case <-time.After(c.timeout):
		return nil, ErrTimeout
	case <-c.closedCh:
		return nil, errors.New("connection closed")
	}
}

func (c *Client) send(req *wire.Request) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.enc.Encode(req); err != nil {
		return err
	}
	return c.w.Flush()
}

// listen routes inbound envelopes: query replies to their waiting caller,
// everything asynchronous to the Events channel.
func (c *Client) listen() {
	defer close(c.events)

	for {
		resp := new(wire.Response)
		if err := c.dec.Decode(resp); err != nil {
			select {
			case <-c.closedCh:
			default:
				c.logger.WithError(err).Debug("Connection lost")
			}
			return
		}

		switch resp.Type {
		case wire.Ack:
			c.acks <- resp.Ack
		case wire.Error:
			c.errs <- resp.Error
		case wire.Graph:
			c.graphs <- resp.Graph
		case wire.Scores:
			c.scores <- resp.Scores
		case wire.AgentList:
			if resp.AgentList != nil {
				c.knownLock.Lock()
				for _, id := range resp.AgentList.Agents {
					c.known[id] = struct{}{}
				}
				c.knownLock.Unlock()
				c.lists <- resp.AgentList.Agents
			}
		case wire.AgentJoined:
			if resp.Presence != nil {
				c.knownLock.Lock()
				c.known[resp.Presence.AgentID] = struct{}{}
				c.knownLock.Unlock()
			}
			c.emit(resp)
		case wire.AgentLeft:
			if resp.Presence != nil {
				c.knownLock.Lock()
				delete(c.known, resp.Presence.AgentID)
				c.knownLock.Unlock()
			}
			c.emit(resp)
		case wire.Message:
			c.emit(resp)
		}
	}
}

// emit delivers an asynchronous envelope without ever blocking the read
// loop; if the consumer is not keeping up the envelope is dropped.
func (c *Client) emit(resp *wire.Response) {
	select {
	case c.events <- resp:
	default:
		c.logger.Debug("Event dropped, consumer not keeping up")
	}
}

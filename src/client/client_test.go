package client

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshworks/tattle/src/common"
	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/wire"
)

// scriptedRelay accepts one connection and plays back canned responses, so
// client behavior around slow answers can be pinned down deterministically.
type scriptedRelay struct {
	t      *testing.T
	stream *tnet.InmemStreamLayer
}

func (s *scriptedRelay) serve(script func(dec *json.Decoder, enc *json.Encoder)) {
	go func() {
		sock, err := s.stream.Accept()
		if err != nil {
			return
		}
		defer sock.Close()

		s.handshake(sock, script)
	}()
}

func (s *scriptedRelay) handshake(sock net.Conn, script func(dec *json.Decoder, enc *json.Encoder)) {
	dec := json.NewDecoder(sock)
	enc := json.NewEncoder(sock)

	req := new(wire.Request)
	if err := dec.Decode(req); err != nil {
		s.t.Error(err)
		return
	}
	if req.Type != wire.Connect {
		s.t.Errorf("first request should be connect, not %s", req.Type)
		return
	}
	enc.Encode(&wire.Response{
		Type:      wire.AgentList,
		AgentList: &wire.AgentListPayload{Agents: []string{req.AgentID}},
	})

	script(dec, enc)
}

func TestLateReplyIsNotMistakenForTheNext(t *testing.T) {
	relay := &scriptedRelay{t: t, stream: tnet.NewInmemStreamLayer()}
	relay.serve(func(dec *json.Decoder, enc *json.Encoder) {
		// first graph request: answer only after the client has given up
		req := new(wire.Request)
		if err := dec.Decode(req); err != nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
		enc.Encode(&wire.Response{
			Type:  wire.Graph,
			Graph: &wire.GraphPayload{Nodes: []string{"stale"}},
		})

		// second graph request: answer promptly
		if err := dec.Decode(req); err != nil {
			return
		}
		enc.Encode(&wire.Response{
			Type:  wire.Graph,
			Graph: &wire.GraphPayload{Nodes: []string{"fresh"}},
		})
	})

	c, err := Dial(relay.stream, "inmem", "alice", 100*time.Millisecond, common.NewTestEntry(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Graph()
	assert.Equal(t, ErrTimeout, err)

	// let the abandoned reply arrive and sit in the buffer
	time.Sleep(600 * time.Millisecond)

	g, err := c.Graph()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, g.Nodes)
}

func TestStaleErrorDoesNotFailTheNextRequest(t *testing.T) {
	relay := &scriptedRelay{t: t, stream: tnet.NewInmemStreamLayer()}
	relay.serve(func(dec *json.Decoder, enc *json.Encoder) {
		// first list request: reject it, but too late to matter
		req := new(wire.Request)
		if err := dec.Decode(req); err != nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
		enc.Encode(wire.NewError(wire.CodeInternal, "too slow anyway"))

		// second list request: answer promptly
		if err := dec.Decode(req); err != nil {
			return
		}
		enc.Encode(&wire.Response{
			Type:      wire.AgentList,
			AgentList: &wire.AgentListPayload{Agents: []string{"alice"}},
		})
	})

	c, err := Dial(relay.stream, "inmem", "alice", 100*time.Millisecond, common.NewTestEntry(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.List()
	assert.Equal(t, ErrTimeout, err)

	time.Sleep(600 * time.Millisecond)

	agents, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, agents)
}

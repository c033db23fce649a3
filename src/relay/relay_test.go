package relay

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshworks/tattle/src/client"
	"github.com/meshworks/tattle/src/common"
	"github.com/meshworks/tattle/src/journal"
	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/wire"
)

const testTimeout = 3 * time.Second

func newTestRelay(t *testing.T) (*Relay, *tnet.InmemStreamLayer, journal.Store) {
	store := journal.NewInmemStore()
	stream := tnet.NewInmemStreamLayer()
	r := New(store, stream, common.NewTestEntry(t))
	r.RunAsync()
	return r, stream, store
}

func dialAgent(t *testing.T, stream *tnet.InmemStreamLayer, id string) *client.Client {
	c, err := client.Dial(stream, "inmem", id, testTimeout, common.NewTestEntry(t))
	require.NoError(t, err)
	return c
}

func waitEvent(t *testing.T, c *client.Client, want wire.ResponseType) *wire.Response {
	deadline := time.After(testTimeout)
	for {
		select {
		case resp, ok := <-c.Events():
			if !ok {
				t.Fatalf("connection closed while waiting for %s", want)
			}
			if resp.Type == want {
				return resp
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestConnectAndList(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()
	bob := dialAgent(t, stream, "bob")
	defer bob.Close()

	agents, err := bob.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, agents)

	assert.Equal(t, 2, r.Registry().Count())
}

func TestDuplicateAgentRejected(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()

	_, err := client.Dial(stream, "inmem", "alice", testTimeout, common.NewTestEntry(t))
	require.Error(t, err)
	relayErr, ok := err.(*client.RelayError)
	require.True(t, ok, "error should be a RelayError, got %v", err)
	assert.Equal(t, wire.CodeDuplicateAgent, relayErr.Code)

	// the incumbent keeps its registration
	assert.Equal(t, 1, r.Registry().Count())
}

func TestMentionDelivery(t *testing.T) {
	r, stream, store := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()
	bob := dialAgent(t, stream, "bob")
	defer bob.Close()

	ack, err := alice.Mention([]string{"bob"}, "hey bob")
	require.NoError(t, err)

	assert.Equal(t, 1, ack.Seq)
	assert.Equal(t, []string{"bob"}, ack.Delivered)
	assert.Empty(t, ack.Failed)

	resp := waitEvent(t, bob, wire.Message)
	assert.Equal(t, "alice", resp.Message.From)
	assert.Equal(t, string(journal.Mention), resp.Message.Kind)
	assert.Equal(t, "hey bob", resp.Message.Content)

	// journaled exactly once
	assert.Equal(t, 1, store.LastSeq())
}

func TestDirectToOfflineRecipient(t *testing.T) {
	r, stream, store := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()

	ack, err := alice.Direct("ghost", "anyone there?")
	require.NoError(t, err)

	// journaled despite the failed delivery
	assert.Equal(t, 1, ack.Seq)
	assert.Equal(t, []string{"ghost"}, ack.Failed)
	assert.Empty(t, ack.Delivered)
	assert.Equal(t, 1, store.LastSeq())
}

func TestBroadcastExcludesSender(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()
	bob := dialAgent(t, stream, "bob")
	defer bob.Close()
	carol := dialAgent(t, stream, "carol")
	defer carol.Close()

	ack, err := alice.Broadcast("hello all")
	require.NoError(t, err)

	delivered := append([]string{}, ack.Delivered...)
	sort.Strings(delivered)
	assert.Equal(t, []string{"bob", "carol"}, delivered)

	for _, c := range []*client.Client{bob, carol} {
		resp := waitEvent(t, c, wire.Message)
		assert.Equal(t, "hello all", resp.Message.Content)
	}
}

func TestPresenceNotifications(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()

	bob := dialAgent(t, stream, "bob")

	joined := waitEvent(t, alice, wire.AgentJoined)
	assert.Equal(t, "bob", joined.Presence.AgentID)

	bob.Close()

	left := waitEvent(t, alice, wire.AgentLeft)
	assert.Equal(t, "bob", left.Presence.AgentID)
	assert.Equal(t, []string{"alice"}, alice.Known())
}

func TestGraphAndScores(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()
	carol := dialAgent(t, stream, "carol")
	defer carol.Close()

	_, err := alice.Mention([]string{"bob"}, "first")
	require.NoError(t, err)
	_, err = alice.Mention([]string{"bob"}, "second")
	require.NoError(t, err)
	_, err = carol.Mention([]string{"dave"}, "third")
	require.NoError(t, err)

	g, err := alice.Graph()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, g.Nodes)
	assert.Equal(t, []wire.GraphEdge{
		{From: "alice", To: "bob", Weight: 2},
		{From: "carol", To: "dave", Weight: 1},
	}, g.Edges)

	s, err := alice.Scores()
	require.NoError(t, err)
	assert.True(t, s.Converged)
	assert.InDelta(t, 1.0, s.Scores["bob"], 1e-9)
	assert.InDelta(t, 0.5, s.Scores["dave"], 1e-9)
	assert.InDelta(t, 0.0, s.Scores["alice"], 1e-9)
}

func TestMalformedRequestKeepsConnectionOpen(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	sock, err := stream.Dial("inmem", testTimeout)
	require.NoError(t, err)
	defer sock.Close()

	enc := json.NewEncoder(sock)
	dec := json.NewDecoder(sock)

	require.NoError(t, enc.Encode(&wire.Request{Type: wire.Connect, AgentID: "alice"}))
	resp := new(wire.Response)
	require.NoError(t, dec.Decode(resp))
	require.Equal(t, wire.AgentList, resp.Type)

	// a mention with no mentioned agents is rejected
	require.NoError(t, enc.Encode(&wire.Request{Type: wire.Mention, Content: "to nobody"}))
	resp = new(wire.Response)
	require.NoError(t, dec.Decode(resp))
	require.Equal(t, wire.Error, resp.Type)
	assert.Equal(t, wire.CodeMalformedRequest, resp.Error.Code)

	// the same connection still serves valid requests
	require.NoError(t, enc.Encode(&wire.Request{Type: wire.List}))
	resp = new(wire.Response)
	require.NoError(t, dec.Decode(resp))
	require.Equal(t, wire.AgentList, resp.Type)
	assert.Equal(t, []string{"alice"}, resp.AgentList.Agents)
}

func TestMessageBeforeConnectRejected(t *testing.T) {
	r, stream, _ := newTestRelay(t)
	defer r.Shutdown()

	sock, err := stream.Dial("inmem", testTimeout)
	require.NoError(t, err)
	defer sock.Close()

	enc := json.NewEncoder(sock)
	dec := json.NewDecoder(sock)

	require.NoError(t, enc.Encode(&wire.Request{Type: wire.Broadcast, Content: "premature"}))
	resp := new(wire.Response)
	require.NoError(t, dec.Decode(resp))
	require.Equal(t, wire.Error, resp.Type)
	assert.Equal(t, wire.CodeNotConnected, resp.Error.Code)
}

func TestConcurrentSendersGaplessSequence(t *testing.T) {
	r, stream, store := newTestRelay(t)
	defer r.Shutdown()

	const agents = 4
	const perAgent = 10

	clients := make([]*client.Client, agents)
	for i := range clients {
		clients[i] = dialAgent(t, stream, fmt.Sprintf("agent%d", i))
		defer clients[i].Close()
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *client.Client) {
			defer wg.Done()
			for n := 0; n < perAgent; n++ {
				if _, err := c.Mention([]string{"agent0"}, fmt.Sprintf("msg %d", n)); err != nil {
					t.Errorf("agent%d: %v", i, err)
					return
				}
			}
		}(i, c)
	}
	wg.Wait()

	total := agents * perAgent
	assert.Equal(t, total, store.LastSeq())

	snapshot := store.Snapshot()
	require.Len(t, snapshot, total)
	for i, ev := range snapshot {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	r, stream, _ := newTestRelay(t)

	alice := dialAgent(t, stream, "alice")
	defer alice.Close()

	r.Shutdown()

	select {
	case _, ok := <-alice.Events():
		assert.False(t, ok, "events channel should be closed after shutdown")
	case <-time.After(testTimeout):
		t.Fatal("client did not observe the shutdown")
	}
}

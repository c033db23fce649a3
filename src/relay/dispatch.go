package relay

import (
	"io"
	"time"

	"github.com/meshworks/tattle/src/journal"
	"github.com/meshworks/tattle/src/metrics"
	"github.com/meshworks/tattle/src/registry"
	"github.com/meshworks/tattle/src/wire"
	"github.com/sirupsen/logrus"
)

// serveConn runs a connection's read loop. Each request is handled to
// completion before the next one is read, so a single connection never
// interleaves its own requests; independent connections interleave only at
// the journal's append critical section.
func (r *Relay) serveConn(c *conn) {
	logger := r.logger.WithField("conn_id", c.id)

	defer func() {
		c.Close()
		if c.agentID != "" {
			r.registry.Unregister(c.agentID)
			metrics.ConnectedAgents.Dec()
			logger.WithField("agent", c.agentID).Info("Agent left")
			r.notify(c.agentID, &wire.Response{
				Type:     wire.AgentLeft,
				Presence: &wire.PresencePayload{AgentID: c.agentID},
			})
		}
	}()

	for {
		req := new(wire.Request)
		if err := c.read(req); err != nil {
			if err != io.EOF {
				logger.WithError(err).Debug("Read failed")
			}
			return
		}

		if !r.dispatch(c, req, logger) {
			return
		}
	}
}

// dispatch validates and routes one request. It returns false when the
// connection must be closed (only a rejected or duplicate connect does
// that); malformed requests produce an error response and leave the
// connection open.
func (r *Relay) dispatch(c *conn, req *wire.Request, logger *logrus.Entry) bool {
	if err := req.Validate(); err != nil {
		r.reject(c, wire.CodeMalformedRequest, err.Error())
		return true
	}

	switch req.Type {
	case wire.Connect:
		return r.handleConnect(c, req, logger)
	case wire.Mention:
		r.handleMessage(c, req, journal.Mention)
	case wire.Direct:
		r.handleMessage(c, req, journal.Direct)
	case wire.Broadcast:
		r.handleMessage(c, req, journal.Broadcast)
	case wire.GraphRequest:
		r.handleGraph(c)
	case wire.GetScores:
		r.handleScores(c)
	case wire.List:
		r.handleList(c)
	}

	return true
}

func (r *Relay) handleConnect(c *conn, req *wire.Request, logger *logrus.Entry) bool {
	if c.agentID != "" {
		r.reject(c, wire.CodeMalformedRequest, "connection already registered as "+c.agentID)
		return true
	}

	if err := r.registry.Register(req.AgentID, c); err != nil {
		if err == registry.ErrDuplicateAgent {
			r.reject(c, wire.CodeDuplicateAgent, "agent id "+req.AgentID+" already registered")
			return false
		}
		r.reject(c, wire.CodeInternal, err.Error())
		return false
	}

	c.agentID = req.AgentID
	metrics.ConnectedAgents.Inc()
	logger.WithField("agent", c.agentID).Info("Agent joined")

	r.notify(c.agentID, &wire.Response{
		Type:     wire.AgentJoined,
		Presence: &wire.PresencePayload{AgentID: c.agentID},
	})

	c.Send(&wire.Response{
		Type:      wire.AgentList,
		AgentList: &wire.AgentListPayload{Agents: r.registry.IDs()},
	})

	return true
}

// handleMessage journals a mention/direct/broadcast request and then
// attempts delivery. Journaling comes first and is what creates graph edges;
// the delivery outcome is reported in the ack but never undoes the journal
// entry.
func (r *Relay) handleMessage(c *conn, req *wire.Request, kind journal.Kind) {
	if c.agentID == "" {
		r.reject(c, wire.CodeNotConnected, "connect before sending messages")
		return
	}

	event := journal.NewEvent(kind, c.agentID, req.Mentions, req.To, req.Content, time.Now().UnixNano())

	seq, err := r.store.Append(event)
	if err != nil {
		metrics.AppendFailures.Inc()
		r.logger.WithError(err).WithField("agent", c.agentID).Error("Append failed")
		r.reject(c, wire.CodeInternal, "append failed: "+err.Error())
		return
	}
	metrics.EventsAppended.WithLabelValues(string(kind)).Inc()

	payload := &wire.MessagePayload{
		From:     event.From,
		Kind:     string(kind),
		Content:  event.Payload,
		Mentions: event.Mentions,
	}
	resp := &wire.Response{Type: wire.Message, Message: payload}

	ack := &wire.AckPayload{Seq: seq}
	switch kind {
	case journal.Direct:
		r.deliver(kind, event.To, resp, ack)
	case journal.Broadcast:
		r.registry.Each(event.From, func(id string, sink registry.Sink) {
			r.deliverSink(kind, id, sink, resp, ack)
		})
	case journal.Mention:
		for _, m := range event.Mentions {
			if m == event.From {
				continue
			}
			r.deliver(kind, m, resp, ack)
		}
	}

	c.Send(&wire.Response{Type: wire.Ack, Ack: ack})
}

func (r *Relay) handleGraph(c *conn) {
	g := r.BuildGraph()

	edges := []wire.GraphEdge{}
	for _, e := range g.Edges() {
		edges = append(edges, wire.GraphEdge{From: e.From, To: e.To, Weight: e.Weight})
	}

	c.Send(&wire.Response{
		Type: wire.Graph,
		Graph: &wire.GraphPayload{
			Nodes: g.Nodes(),
			Edges: edges,
		},
	})
}

func (r *Relay) handleScores(c *conn) {
	scores, converged := r.ComputeScores()

	c.Send(&wire.Response{
		Type:   wire.Scores,
		Scores: &wire.ScoresPayload{Scores: scores, Converged: converged},
	})
}

func (r *Relay) handleList(c *conn) {
	c.Send(&wire.Response{
		Type:      wire.AgentList,
		AgentList: &wire.AgentListPayload{Agents: r.registry.IDs()},
	})
}

// deliver routes a payload to a single recipient, recording the outcome in
// the ack. An offline recipient is a failed delivery, not an error.
func (r *Relay) deliver(kind journal.Kind, id string, resp *wire.Response, ack *wire.AckPayload) {
	sink, ok := r.registry.Lookup(id)
	if !ok {
		metrics.DeliveryFailures.WithLabelValues(string(kind)).Inc()
		ack.Failed = append(ack.Failed, id)
		return
	}
	r.deliverSink(kind, id, sink, resp, ack)
}

func (r *Relay) deliverSink(kind journal.Kind, id string, sink registry.Sink, resp *wire.Response, ack *wire.AckPayload) {
	if err := sink.Send(resp); err != nil {
		r.logger.WithError(err).WithField("agent", id).Debug("Delivery failed")
		metrics.DeliveryFailures.WithLabelValues(string(kind)).Inc()
		ack.Failed = append(ack.Failed, id)
		return
	}
	metrics.Deliveries.WithLabelValues(string(kind)).Inc()
	ack.Delivered = append(ack.Delivered, id)
}

// notify fans a presence event out to every agent except the subject.
func (r *Relay) notify(exclude string, resp *wire.Response) {
	r.registry.Each(exclude, func(id string, sink registry.Sink) {
		if err := sink.Send(resp); err != nil {
			r.logger.WithError(err).WithField("agent", id).Debug("Notify failed")
		}
	})
}

// reject sends an error response and counts it.
func (r *Relay) reject(c *conn, code, message string) {
	metrics.RejectedRequests.WithLabelValues(code).Inc()
	c.Send(wire.NewError(code, message))
}

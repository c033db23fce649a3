// Package wire defines the envelopes exchanged between agents and the relay.
// Every request and response is a single JSON object on a persistent stream,
// tagged with a type field. The tags are closed sets: the relay's dispatcher
// switches exhaustively over RequestType, and clients switch exhaustively
// over ResponseType.
package wire

import "fmt"

// RequestType tags inbound envelopes.
type RequestType string

const (
	// Connect registers the sender's agent id on this connection.
	Connect RequestType = "connect"
	// Mention journals a message naming other agents and delivers it to the
	// mentioned agents that are online.
	Mention RequestType = "mention"
	// Direct journals a message and delivers it to a single recipient.
	Direct RequestType = "direct"
	// Broadcast journals a message and delivers it to every other agent.
	Broadcast RequestType = "broadcast"
	// GraphRequest asks for the mention graph built from a fresh snapshot.
	GraphRequest RequestType = "graph_request"
	// GetScores asks for centrality scores built from a fresh snapshot.
	GetScores RequestType = "get_scores"
	// List asks for the ids of the currently connected agents.
	List RequestType = "list"
)

// ResponseType tags outbound envelopes.
type ResponseType string

const (
	// Ack confirms that a message was journaled, with delivery outcomes.
	Ack ResponseType = "ack"
	// Error reports a rejected request. The connection stays open except
	// after a rejected connect.
	Error ResponseType = "error"
	// Message carries a relayed payload to a recipient.
	Message ResponseType = "message"
	// AgentJoined announces a newly connected agent.
	AgentJoined ResponseType = "agent_joined"
	// AgentLeft announces a disconnected agent.
	AgentLeft ResponseType = "agent_left"
	// AgentList carries the connected agent ids, sent on connect and in
	// reply to List.
	AgentList ResponseType = "agent_list"
	// Graph carries the mention graph.
	Graph ResponseType = "graph"
	// Scores carries centrality scores and the convergence flag.
	Scores ResponseType = "scores"
)

// Error codes carried in ErrorPayload.Code.
const (
	CodeMalformedRequest = "malformed_request"
	CodeDuplicateAgent   = "duplicate_agent"
	CodeNotConnected     = "not_connected"
	CodeInternal         = "internal_error"
)

// Request is the inbound envelope.
type Request struct {
	Type     RequestType `json:"type"`
	AgentID  string      `json:"agent_id,omitempty"`
	To       string      `json:"to,omitempty"`
	Mentions []string    `json:"mentions,omitempty"`
	Content  string      `json:"content,omitempty"`
}

// AckPayload reports the journal sequence number assigned to a message and
// the per-recipient delivery outcome. A failed delivery never undoes the
// journal entry; edges exist even if the recipient was offline.
type AckPayload struct {
	Seq       int      `json:"seq"`
	Delivered []string `json:"delivered,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessagePayload carries a relayed message to a recipient.
type MessagePayload struct {
	From     string   `json:"from"`
	Kind     string   `json:"kind"`
	Content  string   `json:"content"`
	Mentions []string `json:"mentions,omitempty"`
}

// PresencePayload announces an agent joining or leaving.
type PresencePayload struct {
	AgentID string `json:"agent_id"`
}

// AgentListPayload carries the currently connected agent ids.
type AgentListPayload struct {
	Agents []string `json:"agents"`
}

// GraphEdge is one weighted mention edge in a graph response.
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// GraphPayload carries the derived mention graph.
type GraphPayload struct {
	Nodes []string    `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ScoresPayload carries centrality scores. Converged is false when the power
// iteration hit its cap before meeting tolerance; that is a quality signal,
// not an error.
type ScoresPayload struct {
	Scores    map[string]float64 `json:"scores"`
	Converged bool               `json:"converged"`
}

// Response is the outbound envelope. Exactly one payload field is set,
// matching Type.
type Response struct {
	Type      ResponseType      `json:"type"`
	Ack       *AckPayload       `json:"ack,omitempty"`
	Error     *ErrorPayload     `json:"error,omitempty"`
	Message   *MessagePayload   `json:"message,omitempty"`
	Presence  *PresencePayload  `json:"presence,omitempty"`
	AgentList *AgentListPayload `json:"agent_list,omitempty"`
	Graph     *GraphPayload     `json:"graph,omitempty"`
	Scores    *ScoresPayload    `json:"scores,omitempty"`
}

// Validate checks the envelope shape of a request. It returns a descriptive
// error for missing or invalid fields; the caller maps that to a
// malformed_request response without closing the connection.
func (r *Request) Validate() error {
	switch r.Type {
	case Connect:
		if r.AgentID == "" {
			return fmt.Errorf("connect requires agent_id")
		}
	case Mention:
		if len(r.Mentions) == 0 {
			return fmt.Errorf("mention requires at least one mentioned agent")
		}
		for _, m := range r.Mentions {
			if m == "" {
				return fmt.Errorf("mention ids must not be empty")
			}
		}
	case Direct:
		if r.To == "" {
			return fmt.Errorf("direct requires a recipient")
		}
	case Broadcast, GraphRequest, GetScores, List:
		// no extra fields required
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	return nil
}

// NewError builds an error response.
func NewError(code, message string) *Response {
	return &Response{
		Type:  Error,
		Error: &ErrorPayload{Code: code, Message: message},
	}
}

package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"connect", Request{Type: Connect, AgentID: "alice"}, true},
		{"connect without id", Request{Type: Connect}, false},
		{"mention", Request{Type: Mention, Mentions: []string{"bob"}, Content: "hi"}, true},
		{"mention with no mentions", Request{Type: Mention, Content: "hi"}, false},
		{"mention with empty id", Request{Type: Mention, Mentions: []string{"bob", ""}}, false},
		{"direct", Request{Type: Direct, To: "bob", Content: "psst"}, true},
		{"direct without recipient", Request{Type: Direct, Content: "psst"}, false},
		{"broadcast", Request{Type: Broadcast, Content: "hello all"}, true},
		{"graph request", Request{Type: GraphRequest}, true},
		{"get scores", Request{Type: GetScores}, true},
		{"list", Request{Type: List}, true},
		{"unknown type", Request{Type: "frobnicate"}, false},
		{"empty type", Request{}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.req.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewError(t *testing.T) {
	resp := NewError(CodeNotConnected, "connect first")

	assert.Equal(t, Error, resp.Type)
	assert.Equal(t, CodeNotConnected, resp.Error.Code)
	assert.Equal(t, "connect first", resp.Error.Message)
}

func TestResponseOmitsEmptyPayloads(t *testing.T) {
	raw, err := json.Marshal(&Response{
		Type: Ack,
		Ack:  &AckPayload{Seq: 7, Delivered: []string{"bob"}},
	})
	assert.NoError(t, err)

	decoded := map[string]json.RawMessage{}
	assert.NoError(t, json.Unmarshal(raw, &decoded))

	// exactly the type tag and the one payload matching it
	assert.Len(t, decoded, 2)
	assert.Contains(t, decoded, "type")
	assert.Contains(t, decoded, "ack")
}

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		Type:     Mention,
		Mentions: []string{"bob", "carol"},
		Content:  "have you two met?",
	}

	raw, err := json.Marshal(req)
	assert.NoError(t, err)

	var decoded Request
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, req, decoded)
}

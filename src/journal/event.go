package journal

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Kind partitions relayed messages. Only Mention events produce graph edges,
// but every kind is journaled.
type Kind string

const (
	// Direct is a message addressed to a single agent.
	Direct Kind = "direct"
	// Broadcast is a message addressed to every other connected agent.
	Broadcast Kind = "broadcast"
	// Mention is a message naming one or more agents; it is the sole source
	// of graph edges.
	Mention Kind = "mention"
)

// ValidKind reports whether k is one of the three journaled message kinds.
func ValidKind(k Kind) bool {
	switch k {
	case Direct, Broadcast, Mention:
		return true
	}
	return false
}

// Event is a single journaled message. Events are immutable once appended;
// Seq is assigned by the store at append time and forms a gapless run
// starting at 1.
type Event struct {
	Seq       int      `json:"seq"`
	From      string   `json:"from"`
	Kind      Kind     `json:"kind"`
	Mentions  []string `json:"mentions,omitempty"`
	To        string   `json:"to,omitempty"`
	Payload   string   `json:"payload"`
	Timestamp int64    `json:"timestamp"`
}

// NewEvent builds an unsequenced Event. Mentions are deduplicated, keeping
// the first occurrence of each id, so that one event contributes at most one
// edge per mentioned agent.
func NewEvent(kind Kind, from string, mentions []string, to string, payload string, timestamp int64) *Event {
	return &Event{
		From:      from,
		Kind:      kind,
		Mentions:  dedupMentions(mentions),
		To:        to,
		Payload:   payload,
		Timestamp: timestamp,
	}
}

func dedupMentions(mentions []string) []string {
	if len(mentions) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(mentions))
	res := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		res = append(res, m)
	}
	return res
}

// Marshal returns the canonical JSON encoding of the Event. The encoding is
// deterministic so that replaying a journal reproduces it byte-for-byte.
func (e *Event) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a canonical JSON encoded Event.
func (e *Event) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}

// Package registry tracks which agent ids currently have a live connection.
// It is pure bookkeeping: nothing here is persisted, and the registry starts
// empty on every restart. The journal, not the registry, is the durable
// record of who ever participated.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/meshworks/tattle/src/wire"
)

// ErrDuplicateAgent is returned when an agent id is already registered.
var ErrDuplicateAgent = errors.New("agent id already registered")

// Sink is the delivery endpoint of a registered agent.
type Sink interface {
	// Send delivers a response envelope to the agent. Implementations must
	// be safe for concurrent use.
	Send(resp *wire.Response) error
}

// Registry is a concurrency-safe map of agent id to live connection.
type Registry struct {
	sync.Mutex
	agents map[string]Sink
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		agents: map[string]Sink{},
	}
}

// Register binds an agent id to its connection. It fails with
// ErrDuplicateAgent when the id is already bound; no two live connections may
// share an id.
func (r *Registry) Register(id string, sink Sink) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.agents[id]; ok {
		return ErrDuplicateAgent
	}
	r.agents[id] = sink
	return nil
}

// Unregister removes an agent id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.Lock()
	defer r.Unlock()

	delete(r.agents, id)
}

// Lookup returns the connection bound to an id, or false when the agent is
// not currently connected.
func (r *Registry) Lookup(id string) (Sink, bool) {
	r.Lock()
	defer r.Unlock()

	sink, ok := r.agents[id]
	return sink, ok
}

// IDs returns the registered agent ids in sorted order.
func (r *Registry) IDs() []string {
	r.Lock()
	defer r.Unlock()

	res := make([]string, 0, len(r.agents))
	for id := range r.agents {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.Lock()
	defer r.Unlock()

	return len(r.agents)
}

// Each calls fn for every registered agent except the excluded id. The
// registry lock is not held during fn, so a slow connection cannot block
// connect/disconnect bookkeeping.
func (r *Registry) Each(exclude string, fn func(id string, sink Sink)) {
	r.Lock()
	targets := make(map[string]Sink, len(r.agents))
	for id, sink := range r.agents {
		if id != exclude {
			targets[id] = sink
		}
	}
	r.Unlock()

	for id, sink := range targets {
		fn(id, sink)
	}
}

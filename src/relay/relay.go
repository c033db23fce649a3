package relay

import (
	"strconv"
	"sync"
	"time"

	"github.com/meshworks/tattle/src/centrality"
	"github.com/meshworks/tattle/src/graph"
	"github.com/meshworks/tattle/src/journal"
	"github.com/meshworks/tattle/src/metrics"
	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/registry"
	"github.com/sirupsen/logrus"
)

// Relay is the central process of the system. It accepts agent connections,
// validates their requests, appends message events to the journal, routes
// payloads to recipients, and serves graph and centrality queries computed
// from journal snapshots. The journal is the only durable state the relay
// owns; the registry of live connections is rebuilt from nothing on restart.
type Relay struct {
	logger   *logrus.Entry
	store    journal.Store
	registry *registry.Registry
	stream   tnet.StreamLayer

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	start time.Time
}

// New instantiates a Relay on top of a journal store and a stream layer. The
// store must already be loaded; the relay starts accepting connections only
// when Run is called.
func New(store journal.Store, stream tnet.StreamLayer, logger *logrus.Entry) *Relay {
	return &Relay{
		logger:     logger,
		store:      store,
		registry:   registry.New(),
		stream:     stream,
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}
}

// Run accepts connections until Shutdown is called, spawning one goroutine
// per connection. It blocks.
func (r *Relay) Run() {
	r.logger.WithField("addr", r.stream.Addr().String()).Info("Listening")

	for {
		sock, err := r.stream.Accept()
		if err != nil {
			select {
			case <-r.shutdownCh:
				return
			default:
				r.logger.WithError(err).Error("Accept failed")
				return
			}
		}

		c := newConn(sock)
		r.logger.WithField("conn_id", c.id).Debug("Connection accepted")

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.serveConn(c)
		}()
	}
}

// RunAsync calls Run in a separate goroutine.
func (r *Relay) RunAsync() {
	go r.Run()
}

// Shutdown stops the listener, closes every live connection, and waits for
// the connection goroutines to drain. The journal store is left open; the
// owner that loaded it closes it.
func (r *Relay) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.logger.Debug("Shutdown")
		close(r.shutdownCh)
		r.stream.Close()
		r.registry.Each("", func(id string, sink registry.Sink) {
			if c, ok := sink.(*conn); ok {
				c.Close()
			}
		})
	})
	r.wg.Wait()
}

// Registry exposes the live-connection registry, mainly for the HTTP
// service.
func (r *Relay) Registry() *registry.Registry {
	return r.registry
}

// BuildGraph builds the mention graph from a fresh journal snapshot.
func (r *Relay) BuildGraph() *graph.Graph {
	return graph.Build(r.store.Snapshot())
}

// ComputeScores builds the graph from a fresh snapshot and runs the
// centrality engine over it.
func (r *Relay) ComputeScores() (map[string]float64, bool) {
	scores, converged := centrality.Scores(r.BuildGraph())

	metrics.CentralityRuns.Inc()
	if !converged {
		metrics.CentralityNonConvergence.Inc()
	}

	return scores, converged
}

// Stats returns a snapshot of relay counters.
func (r *Relay) Stats() map[string]string {
	return map[string]string{
		"last_seq":         strconv.Itoa(r.store.LastSeq()),
		"connected_agents": strconv.Itoa(r.registry.Count()),
		"uptime":           time.Since(r.start).String(),
	}
}

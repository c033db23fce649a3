package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/meshworks/tattle/src/relay"
	"github.com/meshworks/tattle/src/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Service exposes a read-only HTTP API over the relay: stats, the derived
// mention graph, centrality scores, the connected agents, and Prometheus
// metrics.
type Service struct {
	sync.Mutex

	bindAddress string
	relay       *relay.Relay
	logger      *logrus.Entry
}

// NewService instantiates the Service and registers its handlers.
func NewService(bindAddress string, r *relay.Relay, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		relay:       r,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServeMux of
// the http package. It is possible that another server in the same process
// is simultaneously using the DefaultServeMux, in which case the handlers
// will be accessible from both servers.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering tattle API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/graph", s.makeHandler(s.GetGraph))
	http.HandleFunc("/scores", s.makeHandler(s.GetScores))
	http.HandleFunc("/agents", s.makeHandler(s.GetAgents))
	http.Handle("/metrics", promhttp.Handler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary
// to call Serve when another server has already been started with the
// DefaultServeMux and the same address:port combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving tattle API")

	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns relay counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.relay.Stats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetGraph returns the mention graph built from a fresh journal snapshot.
func (s *Service) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.relay.BuildGraph()

	edges := []wire.GraphEdge{}
	for _, e := range g.Edges() {
		edges = append(edges, wire.GraphEdge{From: e.From, To: e.To, Weight: e.Weight})
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(wire.GraphPayload{
		Nodes: g.Nodes(),
		Edges: edges,
	})
}

// GetScores returns centrality scores built from a fresh journal snapshot.
func (s *Service) GetScores(w http.ResponseWriter, r *http.Request) {
	scores, converged := s.relay.ComputeScores()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(wire.ScoresPayload{
		Scores:    scores,
		Converged: converged,
	})
}

// GetAgents returns the ids of the currently connected agents.
func (s *Service) GetAgents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(wire.AgentListPayload{
		Agents: s.relay.Registry().IDs(),
	})
}

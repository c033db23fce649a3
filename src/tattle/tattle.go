// Package tattle assembles a relay from its parts: the durable journal, the
// stream layer, the dispatcher, and the HTTP service. It is the programmatic
// entry point; the command line wrapper in cmd/tattle is a thin layer over
// this package.
package tattle

import (
	"github.com/meshworks/tattle/src/config"
	"github.com/meshworks/tattle/src/journal"
	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/relay"
	"github.com/meshworks/tattle/src/service"
)

// Tattle is the top-level object holding a relay and its collaborators.
type Tattle struct {
	Config  *config.Config
	Store   journal.Store
	Relay   *relay.Relay
	Service *service.Service

	stream tnet.StreamLayer
}

// NewTattle instantiates an engine from a config object. Init must be called
// before Run.
func NewTattle(conf *config.Config) *Tattle {
	return &Tattle{
		Config: conf,
	}
}

// Init loads the journal and binds the listener. The journal is fully
// replayed before the listener exists, so no connection can be accepted
// against a partially loaded log. A corrupt journal aborts initialization;
// starting fresh instead would be indistinguishable from data loss.
func (t *Tattle) Init() error {
	logger := t.Config.Logger()

	if err := t.initStore(); err != nil {
		return err
	}

	if err := t.initStream(); err != nil {
		return err
	}

	t.Relay = relay.New(t.Store, t.stream, logger)

	if !t.Config.NoService {
		t.Service = service.NewService(t.Config.ServiceAddr, t.Relay, logger)
	}

	return nil
}

func (t *Tattle) initStore() error {
	logger := t.Config.Logger()

	logger.WithField("path", t.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := journal.LoadOrCreateBadgerStore(t.Config.DatabaseDir)
	if err != nil {
		return err
	}

	if store.LastSeq() > 0 {
		logger.WithField("last_seq", store.LastSeq()).Debug("Loaded journal from existing database")
	} else {
		logger.Debug("Created new journal from fresh database")
	}

	t.Store = store

	return nil
}

func (t *Tattle) initStream() error {
	stream, err := tnet.NewTCPStreamLayer(t.Config.BindAddr)
	if err != nil {
		return err
	}

	t.stream = stream

	return nil
}

// Addr returns the address the listener is actually bound to, which differs
// from the configured BindAddr when port 0 was requested.
func (t *Tattle) Addr() string {
	return t.stream.Addr().String()
}

// Run starts the HTTP service and the relay's accept loop. It blocks until
// the relay shuts down.
func (t *Tattle) Run() {
	if t.Service != nil {
		go t.Service.Serve()
	}

	t.Relay.Run()
}

// Shutdown stops the relay and closes the journal.
func (t *Tattle) Shutdown() {
	if t.Relay != nil {
		t.Relay.Shutdown()
	}
	if t.Store != nil {
		t.Store.Close()
	}
}

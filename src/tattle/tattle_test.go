package tattle

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshworks/tattle/src/client"
	"github.com/meshworks/tattle/src/config"
	tnet "github.com/meshworks/tattle/src/net"
)

func testConfig(t *testing.T, dir string) *config.Config {
	conf := config.NewTestConfig(t)
	conf.SetDataDir(dir)
	conf.DatabaseDir = filepath.Join(dir, "badger_db")
	conf.BindAddr = "127.0.0.1:0"
	conf.NoService = true
	conf.Timeout = 3 * time.Second
	return conf
}

func TestInitRunShutdown(t *testing.T) {
	dir, err := ioutil.TempDir("", "tattle")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	engine := NewTattle(testConfig(t, dir))
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	go engine.Run()
	defer engine.Shutdown()

	addr := engine.Relay.Stats() // sanity: the relay is alive
	if addr["last_seq"] != "0" {
		t.Fatalf("fresh engine should have an empty journal, last_seq=%s", addr["last_seq"])
	}

	agent, err := client.Dial(tnet.TCPDialer{}, engine.Addr(), "alice", 3*time.Second, engine.Config.Logger())
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	ack, err := agent.Mention([]string{"bob"}, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if ack.Seq != 1 {
		t.Fatalf("first message should get seq 1, not %d", ack.Seq)
	}
}

func TestJournalSurvivesRestart(t *testing.T) {
	dir, err := ioutil.TempDir("", "tattle")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	engine := NewTattle(testConfig(t, dir))
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	go engine.Run()

	agent, err := client.Dial(tnet.TCPDialer{}, engine.Addr(), "alice", 3*time.Second, engine.Config.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := agent.Mention([]string{"bob"}, "before restart"); err != nil {
		t.Fatal(err)
	}
	agent.Close()
	engine.Shutdown()

	// same data dir, fresh process: the journal must be replayed
	engine = NewTattle(testConfig(t, dir))
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	defer engine.Shutdown()

	if engine.Store.LastSeq() != 1 {
		t.Fatalf("journal should survive a restart, last_seq=%d", engine.Store.LastSeq())
	}

	g := engine.Relay.BuildGraph()
	if g.Weight("alice", "bob") != 1 {
		t.Fatal("mention graph should be rebuilt from the reloaded journal")
	}
}

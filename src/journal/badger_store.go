package journal

import (
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	cm "github.com/meshworks/tattle/src/common"
)

const journalPrefix = "journal"

// BadgerStore is a durable journal backed by a Badger database. An InmemStore
// fronts the database so that snapshots and reads never touch disk; the
// database write is committed synchronously before an append is acknowledged.
type BadgerStore struct {
	sync.Mutex
	cache *InmemStore
	db    *badger.DB
	path  string
}

// NewBadgerStore creates a brand new store with a new database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		cache: NewInmemStore(),
		db:    handle,
		path:  path,
	}

	return store, nil
}

// LoadBadgerStore creates a store from an existing database, replaying every
// record into the cache. A record that cannot be decoded, or a sequence with
// gaps, yields a Corrupt error; the caller must treat that as fatal rather
// than start from an empty journal.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		cache: NewInmemStore(),
		db:    handle,
		path:  path,
	}

	if err := store.replay(); err != nil {
		store.db.Close()
		return nil, err
	}

	return store, nil
}

// LoadOrCreateBadgerStore loads an existing database or creates a new one
// when the path does not exist yet. Unlike a blind load-else-create, a
// present-but-unreadable database is an error: silently resetting the journal
// would be indistinguishable from data loss.
func LoadOrCreateBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewBadgerStore(path)
	}
	return LoadBadgerStore(path)
}

func journalKey(seq int) []byte {
	return []byte(fmt.Sprintf("%s_%012d", journalPrefix, seq))
}

// replay walks the persisted records in key order and rebuilds the cache.
func (s *BadgerStore) replay() error {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(journalPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			event := new(Event)
			if err := event.Unmarshal(val); err != nil {
				return cm.NewStoreErr("Event", cm.Corrupt, string(item.Key()))
			}

			count++
			if event.Seq != count {
				return cm.NewStoreErr("Event", cm.Corrupt, string(item.Key()))
			}

			s.cache.Lock()
			err = s.cache.insert(event)
			s.cache.Unlock()
			if err != nil {
				return cm.NewStoreErr("Event", cm.Corrupt, string(item.Key()))
			}
		}
		return nil
	})
	return err
}

// Append implements the Store interface. The database commit and the cache
// update happen inside one critical section so sequence assignment and
// durability are atomic with respect to concurrent appends.
func (s *BadgerStore) Append(event *Event) (int, error) {
	s.Lock()
	defer s.Unlock()

	seq := s.cache.LastSeq() + 1
	event.Seq = seq

	val, err := event.Marshal()
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(seq), val)
	})
	if err != nil {
		// not durable, so not acknowledged; the sequence number is not
		// consumed either.
		return 0, err
	}

	s.cache.Lock()
	err = s.cache.insert(event)
	s.cache.Unlock()
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// Snapshot implements the Store interface.
func (s *BadgerStore) Snapshot() []*Event {
	return s.cache.Snapshot()
}

// Get implements the Store interface.
func (s *BadgerStore) Get(seq int) (*Event, error) {
	event, err := s.cache.Get(seq)
	if err != nil {
		event, err = s.dbGetEvent(seq)
	}
	return event, err
}

// LastSeq implements the Store interface.
func (s *BadgerStore) LastSeq() int {
	return s.cache.LastSeq()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func (s *BadgerStore) dbGetEvent(seq int) (*Event, error) {
	var eventBytes []byte
	key := journalKey(seq)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		eventBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, cm.NewStoreErr("Event", cm.KeyNotFound, string(key))
	}

	event := new(Event)
	if err := event.Unmarshal(eventBytes); err != nil {
		return nil, cm.NewStoreErr("Event", cm.Corrupt, string(key))
	}

	return event, nil
}

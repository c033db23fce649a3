package journal

import (
	"strconv"
	"sync"

	cm "github.com/meshworks/tattle/src/common"
)

// InmemStore keeps the journal in memory. It backs tests and serves as the
// read cache inside BadgerStore.
type InmemStore struct {
	sync.Mutex
	events []*Event
}

// NewInmemStore returns an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		events: []*Event{},
	}
}

// Append implements the Store interface.
func (s *InmemStore) Append(event *Event) (int, error) {
	s.Lock()
	defer s.Unlock()

	event.Seq = len(s.events) + 1
	if err := s.insert(event); err != nil {
		return 0, err
	}

	return event.Seq, nil
}

// insert records a pre-sequenced event. The caller must hold the lock.
func (s *InmemStore) insert(event *Event) error {
	next := len(s.events) + 1
	key := strconv.Itoa(event.Seq)
	if event.Seq > next {
		return cm.NewStoreErr("Event", cm.SkippedIndex, key)
	}
	if event.Seq < next {
		return cm.NewStoreErr("Event", cm.PassedIndex, key)
	}
	s.events = append(s.events, event)
	return nil
}

// Snapshot implements the Store interface.
func (s *InmemStore) Snapshot() []*Event {
	s.Lock()
	defer s.Unlock()

	res := make([]*Event, len(s.events))
	copy(res, s.events)
	return res
}

// Get implements the Store interface.
func (s *InmemStore) Get(seq int) (*Event, error) {
	s.Lock()
	defer s.Unlock()

	if seq < 1 || seq > len(s.events) {
		return nil, cm.NewStoreErr("Event", cm.KeyNotFound, strconv.Itoa(seq))
	}
	return s.events[seq-1], nil
}

// LastSeq implements the Store interface.
func (s *InmemStore) LastSeq() int {
	s.Lock()
	defer s.Unlock()

	return len(s.events)
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

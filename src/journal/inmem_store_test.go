package journal

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	cm "github.com/meshworks/tattle/src/common"
)

func TestInmemAppend(t *testing.T) {
	store := NewInmemStore()

	for i := 1; i <= 10; i++ {
		event := NewEvent(Broadcast, "alice", nil, "", fmt.Sprintf("msg %d", i), int64(i))
		seq, err := store.Append(event)
		if err != nil {
			t.Fatal(err)
		}
		if seq != i {
			t.Fatalf("seq should be %d, not %d", i, seq)
		}
	}

	if last := store.LastSeq(); last != 10 {
		t.Fatalf("LastSeq should be 10, not %d", last)
	}
}

func TestInmemGet(t *testing.T) {
	store := NewInmemStore()

	event := NewEvent(Direct, "alice", nil, "bob", "hi", 1)
	if _, err := store.Append(event); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(event, got) {
		t.Fatalf("event should be %#v, not %#v", event, got)
	}

	if _, err := store.Get(2); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("error should be KeyNotFound, not %v", err)
	}
	if _, err := store.Get(0); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("error should be KeyNotFound, not %v", err)
	}
}

func TestInmemSnapshotIsolation(t *testing.T) {
	store := NewInmemStore()

	for i := 0; i < 3; i++ {
		store.Append(NewEvent(Broadcast, "alice", nil, "", "m", int64(i)))
	}

	snapshot := store.Snapshot()

	// appends after the snapshot must not show up in it
	store.Append(NewEvent(Broadcast, "alice", nil, "", "late", 99))

	if len(snapshot) != 3 {
		t.Fatalf("snapshot should hold 3 events, not %d", len(snapshot))
	}
	for i, ev := range snapshot {
		if ev.Seq != i+1 {
			t.Fatalf("snapshot[%d].Seq should be %d, not %d", i, i+1, ev.Seq)
		}
	}
}

func TestInmemConcurrentAppends(t *testing.T) {
	store := NewInmemStore()

	writers := 8
	perWriter := 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			from := fmt.Sprintf("agent%d", w)
			for i := 0; i < perWriter; i++ {
				if _, err := store.Append(NewEvent(Broadcast, from, nil, "", "m", int64(i))); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	total := writers * perWriter
	snapshot := store.Snapshot()
	if len(snapshot) != total {
		t.Fatalf("snapshot should hold %d events, not %d", total, len(snapshot))
	}

	// sequence numbers form a gapless increasing run from 1..total
	for i, ev := range snapshot {
		if ev.Seq != i+1 {
			t.Fatalf("snapshot[%d].Seq should be %d, not %d", i, i+1, ev.Seq)
		}
	}
}

package testutil

import (
	"sync"
	"testing"
	"time"
)

// Counter is a deterministic integer counter for tests.
type Counter struct {
	lock  sync.Mutex
	value int
}

// Next increments and returns counter value.
func (counter *Counter) Next() int {
	counter.lock.Lock()
	defer counter.lock.Unlock()
	counter.value++
	return counter.value
}

// Value returns the current counter value.
func (counter *Counter) Value() int {
	counter.lock.Lock()
	defer counter.lock.Unlock()
	return counter.value
}

// Journal records named events in the order handlers report them.
type Journal struct {
	lock    sync.Mutex
	entries []string
	notify  chan struct{}
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{notify: make(chan struct{}, 1)}
}

// Record appends entry.
func (journal *Journal) Record(entry string) {
	journal.lock.Lock()
	journal.entries = append(journal.entries, entry)
	journal.lock.Unlock()
	select {
	case journal.notify <- struct{}{}:
	default:
	}
}

// Entries returns a copy of the recorded entries.
func (journal *Journal) Entries() []string {
	journal.lock.Lock()
	defer journal.lock.Unlock()
	return append([]string(nil), journal.entries...)
}

// WaitFor blocks until at least count entries were recorded.
func (journal *Journal) WaitFor(t testing.TB, count int) []string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if entries := journal.Entries(); len(entries) >= count {
			return entries
		}
		select {
		case <-journal.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d journal entries, have %v", count, journal.Entries())
			return nil
		}
	}
}

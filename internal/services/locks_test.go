package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	k := newKeyedLocks()
	const goroutines = 50

	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			unlock := k.Lock("txn-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines, counter)
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	k := newKeyedLocks()

	unlockA := k.Lock("a")
	// b must not block while a is held
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedLocksEntriesReclaimed(t *testing.T) {
	k := newKeyedLocks()
	unlock := k.Lock("a")
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}

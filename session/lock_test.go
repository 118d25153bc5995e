package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const turns = 100
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("1:telegram:12345")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, turns, counter)
}

func TestKeyedMutexIndependentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()

	unlockA := km.Lock("1:telegram:alice")

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("1:telegram:bob")
		unlockB()
		close(done)
	}()

	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("1:telegram:carol")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}

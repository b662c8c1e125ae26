package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("github:42")
			counter++
			m.Unlock("github:42")
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestKeyedMutexWith(t *testing.T) {
	m := NewKeyedMutex()
	boom := errors.New("boom")

	assert.ErrorIs(t, m.With("k", func() error { return boom }), boom)
	// the lock was released, so it can be taken again
	assert.NoError(t, m.With("k", func() error { return nil }))
}

func TestShardForIsStable(t *testing.T) {
	assert.Equal(t, shardFor("google:abc"), shardFor("google:abc"))
	assert.Less(t, shardFor(""), uint32(shardCount))
}

package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevisionClock_StartsAfterOffset(t *testing.T) {
	c := NewRevisionClock(5)

	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, int64(6), c.Next())
	assert.Equal(t, int64(7), c.Next())
	assert.Equal(t, int64(7), c.Current())
}

func TestRevisionClock_Reset(t *testing.T) {
	c := NewRevisionClock(0)
	c.Next()
	c.Next()

	c.Reset()

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
}

func TestRevisionClock_Concurrent(t *testing.T) {
	c := NewRevisionClock(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), c.Current())
}

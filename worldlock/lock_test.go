package worldlock

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWithSerializesHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world", ".worldsync.lock")
	first := New(path, zaptest.NewLogger(t))
	second := New(path, zaptest.NewLogger(t))

	var mu sync.Mutex
	events := []string{}
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	held := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := first.With(func() error {
			record("first:start")
			close(held)
			time.Sleep(200 * time.Millisecond)
			record("first:end")
			return nil
		})
		assert.NoError(t, err)
	}()

	go func() {
		defer wg.Done()
		<-held
		err := second.With(func() error {
			record("second:start")
			record("second:end")
			return nil
		})
		assert.NoError(t, err)
	}()

	wg.Wait()
	assert.Equal(t, []string{"first:start", "first:end", "second:start", "second:end"}, events)
}

func TestWithReleasesOnError(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), ".lock"), zaptest.NewLogger(t))

	boom := errors.New("boom")
	assert.ErrorIs(t, lock.With(func() error { return boom }), boom)

	done := make(chan error, 1)
	go func() {
		done <- lock.With(func() error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lock was not released after an error")
	}
}

func TestWithReleasesOnPanic(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), ".lock"), zaptest.NewLogger(t))

	require.Panics(t, func() {
		lock.With(func() error { panic("boom") })
	})

	done := make(chan error, 1)
	go func() {
		done <- lock.With(func() error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lock was not released after a panic")
	}
}

package perkey

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_SequentialPerKey(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var (
		mu  sync.Mutex
		seq []int
		wg  sync.WaitGroup
	)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do("key1", func() error {
				mu.Lock()
				seq = append(seq, i)
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, seq)
}

func TestScheduler_ParallelAcrossKeys(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var (
		running    atomic.Int32
		maxRunning atomic.Int32
		wg         sync.WaitGroup
	)
	for i := range 5 {
		key := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(key, func() error {
				cur := running.Add(1)
				for {
					m := maxRunning.Load()
					if cur <= m || maxRunning.CompareAndSwap(m, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, maxRunning.Load(), int32(2))
}

func TestScheduler_ErrorPropagation(t *testing.T) {
	s := New[string]()
	defer s.Close()

	expectedErr := errors.New("task error")
	require.Equal(t, expectedErr, s.Do("key", func() error { return expectedErr }))
}

func TestScheduler_DoContext_Cancelled(t *testing.T) {
	s := New[string]()
	defer s.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.DoContext(ctx, "key", func(context.Context) error {
		t.Error("task should not execute")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, s.Len())
}

func TestScheduler_DoContext_Timeout(t *testing.T) {
	s := New[string]()
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Do("key", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	var sawCtx atomic.Bool
	err := s.DoContext(ctx, "key", func(ctx context.Context) error {
		sawCtx.Store(ctx.Err() != nil)
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	wg.Wait()
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, sawCtx.Load(), "queued task runs with the caller's expired context")
}

func TestScheduler_Close_NoNewTasks(t *testing.T) {
	s := New[string]()
	s.Close()
	require.ErrorIs(t, s.Do("key", func() error { return nil }), ErrSchedulerClosed)
}

func TestScheduler_Close_DrainsExisting(t *testing.T) {
	s := New[string](WithBufferSize(10))

	var (
		executed atomic.Int32
		wg       sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do("key", func() error {
				time.Sleep(10 * time.Millisecond)
				executed.Add(1)
				return nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)

	s.Close()
	wg.Wait()

	require.EqualValues(t, 5, executed.Load())
}

func TestScheduler_Close_NoPanic(t *testing.T) {
	s := New[string]()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do("key", func() error { return nil })
		}()
	}
	go func() {
		time.Sleep(time.Millisecond)
		s.Close()
	}()
	wg.Wait()
}

func TestScheduler_Close_Idempotent(t *testing.T) {
	s := New[string]()
	s.Close()
	s.Close()
}

func TestScheduler_WithBufferSize_Invalid(t *testing.T) {
	s := New[string](WithBufferSize(0))
	s2 := New[string](WithBufferSize(-1))
	defer s.Close()
	defer s2.Close()

	require.Equal(t, 64, s.bufferSize)
	require.Equal(t, 64, s2.bufferSize)
	require.NoError(t, s.Do("key", func() error { return nil }))
}

func TestScheduler_IdleWorkersAreRetired(t *testing.T) {
	s := New[int]()
	defer s.Close()

	var (
		wg    sync.WaitGroup
		total atomic.Int32
	)
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Do(i%10, func() error {
				total.Add(1)
				return nil
			}))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 100, total.Load())
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	// a retired key gets a fresh worker
	require.NoError(t, s.Do(3, func() error { return nil }))
}

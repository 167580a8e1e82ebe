package sf

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleflight_Do(t *testing.T) {
	var (
		g       = New[int]()
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
		results = make([]int, 5)
	)

	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := g.Do("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, []int{42, 42, 42, 42, 42}, results)
}

func TestSingleflight_Do_error(t *testing.T) {
	g := New[*int]()
	boom := errors.New("boom")
	v, shared, err := g.Do("k", func() (*int, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.Nil(t, v)
	require.False(t, shared)
}

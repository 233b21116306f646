package timeout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_OperationWins(t *testing.T) {
	result, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "done", nil
	}, Options{Timeout: time.Second, Name: "fast"})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestRun_OperationError(t *testing.T) {
	opErr := errors.New("boom")
	result, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, opErr
	}, Options{Timeout: time.Second})

	assert.Nil(t, result)
	assert.Equal(t, opErr, err)
	assert.False(t, IsTimeout(err))
}

func TestRun_TimerWins(t *testing.T) {
	var fired atomic.Bool
	result, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		time.Sleep(500 * time.Millisecond)
		return "late", nil
	}, Options{
		Timeout:   50 * time.Millisecond,
		Name:      "slow",
		OnTimeout: func() { fired.Store(true) },
	})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, fired.Load())

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "slow", te.Op)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
	assert.False(t, te.Cancelled)
}

func TestRun_AbandonedOperationStillFinishes(t *testing.T) {
	var ran atomic.Bool
	_, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		time.Sleep(100 * time.Millisecond)
		ran.Store(true)
		return nil, nil
	}, Options{Timeout: 20 * time.Millisecond})

	require.True(t, IsTimeout(err))
	assert.False(t, ran.Load())

	// The goroutine was abandoned, not killed
	time.Sleep(150 * time.Millisecond)
	assert.True(t, ran.Load())
}

func TestRun_CancelBeforeStart(t *testing.T) {
	cancelled := make(chan struct{})
	close(cancelled)

	var ran atomic.Bool
	result, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		ran.Store(true)
		return "x", nil
	}, Options{Timeout: time.Second, Cancel: cancelled})

	assert.Nil(t, result)
	require.True(t, IsCancelled(err))
	assert.False(t, ran.Load())
}

func TestRun_CancelMidFlight(t *testing.T) {
	cancelCh := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(cancelCh)
	}()

	start := time.Now()
	_, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		time.Sleep(2 * time.Second)
		return nil, nil
	}, Options{Timeout: 5 * time.Second, Cancel: cancelCh})

	require.True(t, IsCancelled(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, func(ctx context.Context) (interface{}, error) {
		time.Sleep(2 * time.Second)
		return nil, nil
	}, Options{Timeout: 5 * time.Second})

	assert.True(t, IsCancelled(err))
}

func TestRun_DefaultTimeout(t *testing.T) {
	_, err := Run(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, Options{})
	assert.NoError(t, err)
}

func TestManager_Go(t *testing.T) {
	m := NewManager()

	result, err := m.Go("op-1", context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	}, Options{Timeout: time.Second})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 0, m.Len())
}

func TestManager_DuplicateID(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = m.Go("dup", context.Background(), func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		}, Options{Timeout: 5 * time.Second})
	}()

	<-started
	_, err := m.Go("dup", context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, Options{Timeout: time.Second})

	assert.Error(t, err)
	close(release)
}

func TestManager_Abort(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := m.Go("long", context.Background(), func(ctx context.Context) (interface{}, error) {
			close(started)
			time.Sleep(5 * time.Second)
			return nil, nil
		}, Options{Timeout: 10 * time.Second})
		done <- err
	}()

	<-started
	assert.Equal(t, []string{"long"}, m.Active())
	assert.True(t, m.Abort("long"))

	err := <-done
	assert.True(t, IsCancelled(err))
	assert.Empty(t, m.Active())

	// Aborting again finds nothing
	assert.False(t, m.Abort("long"))
}

func TestManager_AbortAll(t *testing.T) {
	m := NewManager()
	var started sync.WaitGroup
	done := make(chan error, 3)

	for _, id := range []string{"a", "b", "c"} {
		started.Add(1)
		go func(id string) {
			_, err := m.Go(id, context.Background(), func(ctx context.Context) (interface{}, error) {
				started.Done()
				time.Sleep(5 * time.Second)
				return nil, nil
			}, Options{Timeout: 10 * time.Second})
			done <- err
		}(id)
	}

	started.Wait()
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 3, m.AbortAll())

	for i := 0; i < 3; i++ {
		assert.True(t, IsCancelled(<-done))
	}
	assert.Equal(t, 0, m.Len())
}

package family

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

type countingSource struct {
	calls  atomic.Int32
	roster Roster
	err    error
}

func (s *countingSource) Roster(_ context.Context, _ string) (Roster, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.roster, nil
}

func TestCacheHitsWithinTTL(t *testing.T) {
	src := &countingSource{roster: Roster{{Name: "Emma", Role: "child"}}}
	c := NewCache(src, time.Minute, 0)

	for i := 0; i < 3; i++ {
		r, err := c.Roster(context.Background(), "owner-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Emma"}, r.Names())
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCacheExpires(t *testing.T) {
	src := &countingSource{roster: Roster{{Name: "Emma"}}}
	c := NewCache(src, 20*time.Millisecond, 0)

	_, err := c.Roster(context.Background(), "owner-1")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.Roster(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheInvalidate(t *testing.T) {
	src := &countingSource{roster: Roster{{Name: "Emma"}}}
	c := NewCache(src, time.Minute, 0)

	_, _ = c.Roster(context.Background(), "owner-1")
	c.Invalidate("owner-1")
	_, _ = c.Roster(context.Background(), "owner-1")

	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheSourceError(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	c := NewCache(src, time.Minute, 0)

	_, err := c.Roster(context.Background(), "owner-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestCacheConcurrentReaders(t *testing.T) {
	src := &countingSource{roster: Roster{{Name: "Emma"}, {Name: "Jack"}}}
	c := NewCache(src, time.Minute, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Roster(context.Background(), "owner-1")
			assert.NoError(t, err)
			assert.Len(t, r, 2)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

// ctxSource fails when the load context is already done.
type ctxSource struct{ roster Roster }

func (s ctxSource) Roster(ctx context.Context, _ string) (Roster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.roster, nil
}

func TestCacheLoadIgnoresCallerCancel(t *testing.T) {
	c := NewCache(ctxSource{roster: Roster{{Name: "Emma"}}}, time.Minute, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := c.Roster(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma"}, r.Names())

	r, err = c.Roster(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma"}, r.Names())
}

func TestRosterFind(t *testing.T) {
	r := Roster{{Name: "Emma", Role: "child"}, {Name: "Dad", Role: "parent"}}

	m, ok := r.Find("emma")
	require.True(t, ok)
	assert.Equal(t, "child", m.Role)

	_, ok = r.Find("Zoe")
	assert.False(t, ok)
}

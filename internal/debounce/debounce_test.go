package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) record(value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestDebouncerCoalescesBurstIntoTrailingCall(t *testing.T) {
	rec := &recorder{}
	d := New(30*time.Millisecond, rec.record)

	d.Call("o")
	d.Call("ow")
	d.Call("owasp")

	require.Empty(t, rec.snapshot())
	require.True(t, d.Pending())

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"owasp"}, rec.snapshot())
	require.False(t, d.Pending())
}

func TestDebouncerZeroDelayCallsSynchronously(t *testing.T) {
	rec := &recorder{}
	d := New(0, rec.record)

	d.Call("zap")
	require.Equal(t, []string{"zap"}, rec.snapshot())
	require.False(t, d.Pending())
}

func TestDebouncerFlushDeliversPendingValueImmediately(t *testing.T) {
	rec := &recorder{}
	d := New(time.Hour, rec.record)

	require.False(t, d.Flush())

	d.Call("juice")
	require.True(t, d.Flush())
	require.Equal(t, []string{"juice"}, rec.snapshot())
	require.False(t, d.Flush())
}

func TestDebouncerStopDropsPendingValue(t *testing.T) {
	rec := &recorder{}
	d := New(10*time.Millisecond, rec.record)

	d.Call("dropped")
	d.Stop()
	d.Call("ignored")

	time.Sleep(40 * time.Millisecond)
	require.Empty(t, rec.snapshot())
}

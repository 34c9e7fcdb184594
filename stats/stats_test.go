package stats

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjaysanjel019/serenity/defs"
)

func TestErrname(t *testing.T) {
	assert.Equal(t, "ok", Errname(0))
	assert.Equal(t, "echild", Errname(-defs.ECHILD))
	assert.Equal(t, "enochildready", Errname(-defs.EAGAIN))
	assert.Equal(t, "eintr", Errname(-defs.EINTR))
	assert.Equal(t, "efault", Errname(-defs.EFAULT))
	assert.Equal(t, "other", Errname(-defs.ENOSYS))
}

func TestCounter(t *testing.T) {
	var c Counter_t
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), c.Load())
}

func TestRegistry(t *testing.T) {
	before := testutil.ToFloat64(Waits.WithLabelValues("ok"))
	Waits.WithLabelValues(Errname(0)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Waits.WithLabelValues("ok")))

	mfs, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["waitk_waitid_total"])
	assert.True(t, names["waitk_parked_waiters"])
	assert.True(t, names["waitk_procs"])
}

package tinfo

import "testing"
import "time"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/sanjaysanjel019/serenity/defs"

func TestInterrupt(t *testing.T) {
	n := Mknote(5)
	assert.Equal(t, defs.Err_t(0), n.Pending())

	n.Interrupt(-defs.EINTR)
	// a second interrupt before the first is seen is folded into it
	n.Interrupt(-defs.EFAULT)
	assert.Equal(t, -defs.EINTR, n.Pending())
	assert.Equal(t, defs.Err_t(0), n.Pending())

	assert.Panics(t, func() { n.Interrupt(0) })
}

func TestInterruptWakesSleeper(t *testing.T) {
	n := Mknote(5)
	got := make(chan defs.Err_t)
	go func() {
		<-n.Killnaps.Killch
		got <- n.Consume()
	}()
	time.Sleep(time.Millisecond)
	n.Interrupt(-defs.EINTR)
	select {
	case err := <-got:
		assert.Equal(t, -defs.EINTR, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sleeper not woken")
	}
}

func TestDoom(t *testing.T) {
	n := Mknote(5)
	assert.False(t, n.Doomed())
	n.Doom()
	assert.True(t, n.Doomed())
	assert.Equal(t, -defs.EINTR, n.Pending())
	// doomed threads never sleep again
	assert.Equal(t, -defs.EINTR, n.Pending())
	assert.Equal(t, -defs.EINTR, n.Pending())
}

func TestThreadinfo(t *testing.T) {
	var ti Threadinfo_t
	ti.Init()
	for i := 1; i <= 10; i++ {
		ti.Set(defs.Tid_t(i), Mknote(defs.Tid_t(i)))
	}
	n, ok := ti.Get(3)
	require.True(t, ok)
	assert.Equal(t, defs.Tid_t(3), n.Tid)

	ti.Del(3)
	_, ok = ti.Get(3)
	assert.False(t, ok)
	_, ok = ti.Get(4)
	assert.True(t, ok)
}

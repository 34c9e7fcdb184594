package limits

import "testing"

import "github.com/stretchr/testify/assert"

func TestDefaults(t *testing.T) {
	l := MkSysLimit()
	assert.Equal(t, 10000, l.Sysprocs)
	assert.Equal(t, uint(1024), l.Noproc)
	assert.Equal(t, 1<<15, l.Pages)
	// fresh copy every time
	l.Sysprocs = 1
	assert.Equal(t, 10000, MkSysLimit().Sysprocs)
}

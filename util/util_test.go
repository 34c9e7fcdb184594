package util

import "testing"

import "github.com/stretchr/testify/assert"

func TestRound(t *testing.T) {
	assert.Equal(t, 4096, Roundup(1, 4096))
	assert.Equal(t, 4096, Roundup(4096, 4096))
	assert.Equal(t, 8192, Roundup(4097, 4096))
	assert.Equal(t, 4096, Rounddown(8191, 4096))
	assert.Equal(t, 0, Rounddown(4095, 4096))
	assert.Equal(t, 3, Min(3, 9))
	assert.Equal(t, -1, Min(3, -1))
}

func TestReadWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 0x0102030405060708)
	assert.Equal(t, []uint8{8, 7, 6, 5, 4, 3, 2, 1}, buf[:8])
	assert.Equal(t, 0x05060708, Readn(buf, 4, 0))
	assert.Equal(t, 0x0708, Readn(buf, 2, 0))
	assert.Equal(t, 0x08, Readn(buf, 1, 0))

	Writen(buf, 4, 8, -1)
	assert.Equal(t, 0xffffffff, Readn(buf, 4, 8))
	assert.Equal(t, 0, Readn(buf, 4, 12))

	assert.Panics(t, func() { Readn(buf, 3, 0) })
	assert.Panics(t, func() { Writen(buf, 5, 0, 1) })
}

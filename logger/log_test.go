package logger

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"

	"github.com/sanjaysanjel019/serenity/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.TraceLevel, parseLevel("trace"))
	assert.Equal(t, log.WarnLevel, parseLevel("warning"))
	assert.Equal(t, log.ErrorLevel, parseLevel("error"))
	assert.Equal(t, log.InfoLevel, parseLevel("loud"))
}

func TestComponentFollowsConfigure(t *testing.T) {
	l := Component("test")
	assert.Same(t, l, Component("test"))
	assert.NotSame(t, l, Component("other"))

	Configure(config.LoggingConfig{Level: "debug", Format: "json"})
	assert.Equal(t, log.DebugLevel, l.Level)
	_, ok := l.Writer.(*log.IOWriter)
	assert.True(t, ok)
	assert.Contains(t, string(l.Context), `"component":"test"`)

	Configure(config.LoggingConfig{Level: "error", Format: "console"})
	assert.Equal(t, log.ErrorLevel, l.Level)
	_, ok = l.Writer.(*log.ConsoleWriter)
	assert.True(t, ok)
}

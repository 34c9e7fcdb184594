package logger

import (
	"io"
	"os"
	"sync"

	"github.com/phuslu/log"

	"github.com/sanjaysanjel019/serenity/config"
)

var (
	mu         sync.Mutex
	components = map[string]*log.Logger{}
)

// parseLevel converts a string log level to log.Level
func parseLevel(s string) log.Level {
	switch s {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func mkwriter(cfg config.LoggingConfig) log.Writer {
	var w io.Writer = os.Stderr
	if cfg.Writer == "stdout" {
		w = os.Stdout
	}
	if cfg.Format == "json" {
		return &log.IOWriter{Writer: w}
	}
	return &log.ConsoleWriter{
		ColorOutput:    cfg.Color,
		QuoteString:    true,
		EndWithMessage: true,
		Writer:         w,
	}
}

// Configure sets log.DefaultLogger from cfg and re-applies it to every
// component logger handed out so far.
func Configure(cfg config.LoggingConfig) {
	caller := 0
	if cfg.Caller {
		caller = 1
	}
	mu.Lock()
	defer mu.Unlock()
	log.DefaultLogger = log.Logger{
		Level:      parseLevel(cfg.Level),
		Caller:     caller,
		TimeFormat: "15:04:05.000",
		Writer:     mkwriter(cfg),
	}
	for name, l := range components {
		*l = derive(name)
	}
	log.Debug().Str("level", cfg.Level).Str("format", cfg.Format).Msg("logging configured")
}

func derive(component string) log.Logger {
	bl := &log.DefaultLogger
	return log.Logger{
		Level:      bl.Level,
		Caller:     0,
		TimeField:  bl.TimeField,
		TimeFormat: bl.TimeFormat,
		Writer:     bl.Writer,
		Context:    log.NewContext(bl.Context).Str("component", component).Value(),
	}
}

// Component returns the logger for a kernel component. The same pointer is
// returned for the same name and follows later Configure calls.
func Component(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := components[component]; ok {
		return l
	}
	l := new(log.Logger)
	*l = derive(component)
	components[component] = l
	return l
}

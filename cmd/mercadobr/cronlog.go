package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenimoa/mercadobr/internal/logging"
)

// cronLogger routes the scheduler's own messages through the app logger.
type cronLogger struct {
	log *logging.Logger
}

func newCronLogger(l *logging.Logger) cronLogger {
	return cronLogger{log: l.With("cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(c.log.Debug(), keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	withFields(c.log.Error().Err(err), keysAndValues).Msg(msg)
}

// withFields adds alternating key/value pairs to the event.
func withFields(e *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	return e
}

package log

import "github.com/robfig/cron/v3"

// cronLogger routes robfig/cron's internal logging through this package.
type cronLogger struct{}

// CronLogger returns a cron.Logger backed by the app logger. cron's own
// Info lines are chatty (every wake-up), so they go to DEBUG.
func CronLogger() cron.Logger { return cronLogger{} }

func (cronLogger) Info(msg string, kv ...interface{}) {
	Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	Error("cron: "+msg, err, kv...)
}

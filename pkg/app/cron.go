package app

import (
	"fmt"

	"github.com/fitmatch/insights/pkg/observability"
)

// CronLogger adapts a Logger to cron.Logger
type CronLogger struct {
	logger *observability.Logger
}

// NewCronLogger creates a cron logger writing through logger
func NewCronLogger(logger *observability.Logger) CronLogger {
	return CronLogger{logger: logger.WithField("component", "cron")}
}

func (l CronLogger) fields(keysAndValues []interface{}) *observability.Logger {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.logger.WithFields(fields)
}

// Info logs routine scheduler messages at debug level
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

// Error logs scheduler failures
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).WithError(err).Error(msg)
}

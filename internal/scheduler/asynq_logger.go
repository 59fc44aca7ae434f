package scheduler

import (
	"fmt"
	"os"

	"offer_compare_backend/platform/logger"
)

// asynqLogger routes asynq's internal logging through the structured logger.
type asynqLogger struct {
	log  *logger.Logger
	exit func(code int)
}

func newAsynqLogger(log *logger.Logger) *asynqLogger {
	return &asynqLogger{log: &logger.Logger{Logger: log.With("component", "asynq")}, exit: os.Exit}
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

// Fatal satisfies asynq's contract that the process terminates.
func (l *asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	l.exit(1)
}

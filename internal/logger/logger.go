// Package logger owns the process-wide logrus instance. HTTP handlers log
// through the per-request entry built by middleware; background code uses
// Component, and Job once it holds a queue job.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

// Init sends output to out, or stdout when out is nil. Debug mode writes
// readable text at debug level; otherwise lines are JSON at info level so
// the worker and API logs can be shipped as is.
func Init(debug bool, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	level := logrus.InfoLevel
	var format logrus.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	if debug {
		level = logrus.DebugLevel
		format = &logrus.TextFormatter{FullTimestamp: true}
	}
	std.SetOutput(out)
	std.SetLevel(level)
	std.SetFormatter(format)
}

func Log() *logrus.Entry {
	return logrus.NewEntry(std)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log().WithFields(fields)
}

// Component tags lines from a background part of the process (worker,
// sweeper, defense) so they can be told apart from request logs.
func Component(name string) *logrus.Entry {
	return Log().WithField("component", name)
}

// Job adds the queue job id to entry.
func Job(entry *logrus.Entry, jobID string) *logrus.Entry {
	return entry.WithField("job_id", jobID)
}

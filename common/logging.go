// Package common provides the connector's shared logging infrastructure:
// a process-wide logrus logger with output routed to stdout/stderr by
// level, so containerized deployments can treat the two streams
// differently (error alerting vs. general log aggregation).
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes error-level log lines to stderr and everything
// else to stdout, based on the formatted line's content.
type OutputSplitter struct{}

// Write implements io.Writer.
func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. Components should prefer a
// ContextLogger built from it (see logger.go) over calling Logger directly,
// so that push/serve/journal logs carry consistent fields.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// Package logging provides the access and error log writers. Grounded on
// the ClientHello-splitting proxy in the example pack (terasu-proxy), which
// logs proxy events through sirupsen/logrus rather than a hand-rolled
// writer; here logrus owns file output and level filtering, while two
// custom Formatters reproduce the exact line shapes the wire format
// requires instead of logrus's default structured output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Loggers bundles the access and error log writers. Either may be backed by
// io.Discard when the corresponding file path is unset.
type Loggers struct {
	Access *logrus.Logger
	Error  *logrus.Logger
}

// accessFormatter renders exactly the caller-built message, one line per
// completed connection: "YYYY-MM-DD HH:MM:SS <src-ip> <METHOD> <dst-host>".
type accessFormatter struct{}

func (accessFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

// errorFormatter renders "[YYYY-MM-DD HH:MM:SS][LEVEL]: <message>", matching
// the original implementation's logging.Formatter exactly.
type errorFormatter struct{}

func (errorFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ts := e.Time.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())
	return []byte(fmt.Sprintf("[%s][%s]: %s\n", ts, level, e.Message)), nil
}

// New opens the configured access/error log files (creating/appending) and
// wires each into its own logrus.Logger. An empty path discards that
// stream entirely.
func New(accessPath, errorPath string) (*Loggers, error) {
	access, err := newLogger(accessPath, accessFormatter{}, logrus.InfoLevel)
	if err != nil {
		return nil, fmt.Errorf("opening access log %q: %w", accessPath, err)
	}
	errLog, err := newLogger(errorPath, errorFormatter{}, logrus.ErrorLevel)
	if err != nil {
		return nil, fmt.Errorf("opening error log %q: %w", errorPath, err)
	}
	return &Loggers{Access: access, Error: errLog}, nil
}

func newLogger(path string, formatter logrus.Formatter, level logrus.Level) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(formatter)
	logger.SetLevel(level)

	if path == "" {
		logger.SetOutput(io.Discard)
		return logger, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(f)
	return logger, nil
}

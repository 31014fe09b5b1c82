// Package log builds loggers for column controllers and the command line.
package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	levelEnv = "CLIPENGINE_LOG_LEVEL"
	debugEnv = "CLIPENGINE_DEBUG"
)

// Logger is what the controller side of a column logs with. Processing
// side never logs.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
}

// New returns a logger which tags every entry with the component. Level
// is taken from CLIPENGINE_LOG_LEVEL, CLIPENGINE_DEBUG=true is a shortcut
// for debug level.
func New(component string) *logrus.Entry {
	l := logrus.New()
	l.SetLevel(level(os.Getenv))
	return l.WithField("component", component)
}

func level(getenv func(string) string) logrus.Level {
	if lvl, err := logrus.ParseLevel(getenv(levelEnv)); err == nil {
		return lvl
	}
	if debug, _ := strconv.ParseBool(getenv(debugEnv)); debug {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// Silent returns a logger which discards everything.
func Silent() Logger {
	return silentLogger{}
}

type silentLogger struct{}

func (silentLogger) Debug(...interface{}) {}

func (silentLogger) Info(...interface{}) {}

func (silentLogger) Warn(...interface{}) {}

// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout.  Production uses the JSON
// formatter so log shippers can index fields; other environments get the
// coloured text formatter.  Unknown level names fall back to info.
func New(prod bool, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if prod {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

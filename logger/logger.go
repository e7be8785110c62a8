// Package logger provides the module's default logger.
package logger

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/iand/logfmtr"
)

var opts = logfmtr.Options{
	Writer:    os.Stderr,
	Colorize:  true,
	Humanize:  true,
	NameDelim: "/",
}
var defaultLogger = logfmtr.NewWithOptions(opts)

// DefaultLogger returns the default (module-specific) logger.
func DefaultLogger() logr.Logger {
	return defaultLogger
}

// Disabled returns a logger that discards everything.
func Disabled() logr.Logger {
	return logr.Discard()
}

// Package logging constructs the application's zerolog.Logger. The logger
// is built once in main and passed down explicitly; no package keeps an
// ambient global.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level  string // debug|info|warn|error|fatal|panic, defaults to info
	Pretty bool   // human-readable console output instead of JSON
	File   string // when set, logs are also written to this rotated file
}

// New builds a zerolog.Logger per opts. With File set, output goes to both
// the console and a size-rotated file so repeated scheduled runs do not
// grow a single log without bound.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	out := console
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rotated)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

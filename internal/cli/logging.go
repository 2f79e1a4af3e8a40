package cli

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes human-readable lines to console and, when file is set,
// JSON lines to a rotating log file.
func newLogger(level, file string, console io.Writer) (zerolog.Logger, io.Closer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	var closer io.Closer = nopCloser{}
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

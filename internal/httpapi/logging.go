package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is an optional structured logger. If unset, the zerolog global
// logger is used.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies when a request carries no override.
var defaultLogLevel = LevelInfo

// SetDefaultLogLevel sets the request log level used without overrides.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logOutcome logs the end of an operation at the request's log level.
// Failures are logged at LevelError and above, successes at LevelInfo.
func logOutcome(r *http.Request, op string, status int, start time.Time, err error) {
	lvl := requestLogLevel(r)
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	l := logger()
	ev := l.Info()
	if err != nil {
		ev = l.Warn().Err(err)
	}
	ev = ev.Str("op", op).Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg(op + " end")
}

// logStart logs the start of an operation at LevelDebug.
func logStart(r *http.Request, op string, fields map[string]any) {
	if requestLogLevel(r) < LevelDebug {
		return
	}
	ev := logger().Debug().Str("op", op).Str("path", r.URL.Path).Fields(fields)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg(op + " start")
}

package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

func init() {
	errors.SetZerologWarnFunc(warnToLogger)
}

// warnToLogger routes errors.Warn into the "warnings" logger of whichever
// provider is current at call time.
func warnToLogger(w error) {
	warnLogger := GetLoggerWithName("warnings")
	if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
		warnLogger.Warn(w.Error(), "warning", obj)
		return
	}
	warnLogger.Warn(w.Error())
}

// SetupLogger configures process-wide logging for binaries.
//
// slog's default logger gets a JSON handler on stderr wrapped by ErrFmtHandler
// and the zerolog provider is set to the same level. Library warnings
// (errors.Warn) already reach the "warnings" logger.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: loglevel == "debug",
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stderr, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	level, _ := ParseLevel(loglevel)
	SetLevel(level)
}

// ToLogLevel converts a level name to slog.Level. It panics on unknown names;
// callers validate user input with ParseLevel first.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

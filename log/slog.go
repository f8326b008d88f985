package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const otelLoggerName = "github.com/hyperledger-labs/yui-lane-relayer"

type RelayLogger struct {
	*slog.Logger
}

var relayLogger *RelayLogger

func InitLogger(logLevel, format, output string, enableTelemetry bool) error {
	// output
	var writer io.Writer
	switch output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		return errors.New("invalid log output")
	}

	return InitLoggerWithWriter(logLevel, format, writer, enableTelemetry)
}

func InitLoggerWithWriter(logLevel, format string, writer io.Writer, enableTelemetry bool) error {
	// level
	var slogLevel slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "INFO":
		slogLevel = slog.LevelInfo
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		return errors.New("invalid log level")
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: true,
	}

	// format
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(writer, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOpts)
	default:
		return errors.New("invalid log format")
	}

	if enableTelemetry {
		handler = slogmulti.Fanout(
			handler,
			&levelHandler{level: slogLevel, Handler: otelslog.NewHandler(otelLoggerName)},
		)
	}

	// set global logger
	relayLogger = &RelayLogger{slog.New(handler)}
	return nil
}

// levelHandler drops records below the configured level before they reach the OTel pipeline
type levelHandler struct {
	level slog.Level
	slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.Handler.Enabled(ctx, level)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithGroup(name)}
}

// GetLogger returns the global logger. If InitLogger has not been called yet, a logger writing
// to stderr at INFO level is returned.
func GetLogger() *RelayLogger {
	if relayLogger == nil {
		return &RelayLogger{slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))}
	}
	return relayLogger
}

func (rl *RelayLogger) log(level slog.Level, skipCallDepth int, msg string, args ...any) {
	rl.logContext(context.Background(), level, skipCallDepth+1, msg, args...)
}

func (rl *RelayLogger) logContext(ctx context.Context, level slog.Level, skipCallDepth int, msg string, args ...any) {
	if !rl.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	// skip [runtime.Callers, this function, the caller of this function]
	runtime.Callers(skipCallDepth+2, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = rl.Handler().Handle(ctx, r)
}

func (rl *RelayLogger) Error(msg string, err error, otherArgs ...any) {
	rl.log(slog.LevelError, 1, msg, errorArgs(err, 2, otherArgs)...)
}

func (rl *RelayLogger) ErrorContext(ctx context.Context, msg string, err error, otherArgs ...any) {
	rl.logContext(ctx, slog.LevelError, 1, msg, errorArgs(err, 2, otherArgs)...)
}

func (rl *RelayLogger) ErrorWithStack(msg string, err error, otherArgs ...any) {
	rl.Error(msg, err, otherArgs...)
}

func (rl *RelayLogger) Fatal(msg string, err error, otherArgs ...any) {
	rl.log(slog.LevelError, 1, msg, errorArgs(err, 2, otherArgs)...)
	os.Exit(1)
}

func errorArgs(err error, depth int, otherArgs []any) []any {
	if err == nil {
		return otherArgs
	}
	cError := errors.WithStackDepth(err, depth)
	return append([]any{"error", err, "stack", fmt.Sprintf("%+v", cError)}, otherArgs...)
}

func (rl *RelayLogger) WithLane(
	laneID string,
	sourceName string,
	targetName string,
) *RelayLogger {
	return &RelayLogger{
		rl.With(
			"lane id", laneID,
			"source", sourceName,
			"target", targetName,
		),
	}
}

func (rl *RelayLogger) WithRace(
	raceName string,
) *RelayLogger {
	return &RelayLogger{
		rl.With(
			"race", raceName,
		),
	}
}

func (rl *RelayLogger) WithModule(
	moduleName string,
) *RelayLogger {
	return &RelayLogger{
		rl.With(
			"module", moduleName,
		),
	}
}

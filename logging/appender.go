package logging

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes human readable (tab separated) log lines to the wrapped writer. Lines
// from concurrent loggers are written whole.
type ConsoleAppender struct {
	mu      sync.Mutex
	w       io.Writer
	encoder zapcore.Encoder
}

// NewWriterAppender creates a new appender that logs to the input writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{w: writer, encoder: zapcore.NewConsoleEncoder(consoleEncoderConfig())}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	// Mirrors zap's development config but with stacktraces disabled and our own time format.
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// Write outputs the log entry to the underlying stream.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.w.Write(buf.Bytes())
	return err
}

// Sync is a no-op; every Write reaches the wrapped writer directly.
func (appender *ConsoleAppender) Sync() error {
	return nil
}

package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for logging to.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<parent>.<subname>" sharing the parent's appenders. The
	// sublogger starts at the parent's level and is adjusted independently afterwards.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	Sync() error
}

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return newImpl(name, imp.level.Get(), imp.inUTC, imp.appenders...)
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// entry must be called directly by logArgs, logf and logw so the caller lookup lands on the
// code that called the Logger method.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	now := time.Now()
	if imp.inUTC {
		now = now.UTC()
	}
	return zapcore.Entry{
		Level:      level.AsZap(),
		Time:       now,
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) logArgs(level Level, args []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) logf(level Level, template string, args []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) logw(level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, msg), toFields(keysAndValues))
	}
}

// toFields pairs up keys and values. A trailing key without a value is kept with an error value
// so the mistake shows up in the output.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
		}
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.logArgs(DEBUG, args) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.logf(DEBUG, template, args) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.logw(DEBUG, msg, keysAndValues)
}

func (imp *impl) Info(args ...interface{}) { imp.logArgs(INFO, args) }

func (imp *impl) Infof(template string, args ...interface{}) { imp.logf(INFO, template, args) }

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.logw(INFO, msg, keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) { imp.logArgs(WARN, args) }

func (imp *impl) Warnf(template string, args ...interface{}) { imp.logf(WARN, template, args) }

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.logw(WARN, msg, keysAndValues)
}

func (imp *impl) Error(args ...interface{}) { imp.logArgs(ERROR, args) }

func (imp *impl) Errorf(template string, args ...interface{}) { imp.logf(ERROR, template, args) }

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.logw(ERROR, msg, keysAndValues)
}

// getCaller returns the location that called a Logger method, e.g. "tracker/tracker.go:260".
func getCaller() zapcore.EntryCaller {
	// getCaller, entry, logArgs/logf/logw, the Logger method
	const skipToLogCaller = 4
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

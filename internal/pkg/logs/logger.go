// Package logs provides leveled logger with bound fields.
package logs

import (
	"fmt"
	"runtime"

	"github.com/labstack/gommon/log"
)

type Logger struct {
	*log.Logger
	fields []any
}

func NewLogger() *Logger {
	logger := log.New("")
	logger.SetHeader(`{"time":"${time_rfc3339_nano}","level":"${level}"}`)
	return &Logger{Logger: logger}
}

// With returns a copy of logger with extra bound fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger,
		fields: append(args, l.fields...),
	}
}

func (l *Logger) Debug(args ...any) {
	l.logj(l.Logger.Debugj, args)
}

func (l *Logger) Info(args ...any) {
	l.logj(l.Logger.Infoj, args)
}

func (l *Logger) Warn(args ...any) {
	l.logj(l.Logger.Warnj, args)
}

func (l *Logger) Error(args ...any) {
	l.logj(l.Logger.Errorj, args)
}

func (l *Logger) Fatal(args ...any) {
	l.logj(l.Logger.Fatalj, args)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logj(l.Logger.Debugj, []any{fmt.Sprintf(format, args...)})
}

func (l *Logger) Infof(format string, args ...any) {
	l.logj(l.Logger.Infoj, []any{fmt.Sprintf(format, args...)})
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logj(l.Logger.Warnj, []any{fmt.Sprintf(format, args...)})
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logj(l.Logger.Errorj, []any{fmt.Sprintf(format, args...)})
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.logj(l.Logger.Fatalj, []any{fmt.Sprintf(format, args...)})
}

func (l *Logger) logj(fn func(log.JSON), args []any) {
	line := map[string]any{}
	if _, file, n, ok := runtime.Caller(2); ok {
		line["file"] = fmt.Sprintf("%s:%d", file, n)
	}
	setLogLine(line, l.fields...)
	setLogLine(line, args...)
	fn(line)
}

type LogField struct {
	Name  string
	Value any
}

func Any(name string, value any) LogField {
	return LogField{Name: name, Value: value}
}

func setLogLine(line map[string]any, args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			line["message"] = v
		case LogField:
			line[v.Name] = v.Value
		case error:
			line["error"] = v.Error()
		default:
			panic(fmt.Errorf("unsupported type: %T", arg))
		}
	}
}

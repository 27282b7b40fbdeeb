package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	consoleTimeLayoutConstant            = "15:04:05"
	structuredTimeKeyConstant            = "ts"
	structuredMessageKeyConstant         = "msg"
	structuredLevelKeyConstant           = "level"
	structuredCallerKeyConstant          = "caller"
	structuredStacktraceKeyConstant      = "stacktrace"
	structuredLoggerNameKeyConstant      = "logger"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// IsHumanReadable reports whether the format targets people rather than log collectors.
func (format LogFormat) IsHumanReadable() bool {
	return normalizeLogFormat(format) == LogFormatConsole
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct {
	destination io.Writer
}

// NewLoggerFactory constructs a factory that writes to standard error.
func NewLoggerFactory() *LoggerFactory {
	return NewLoggerFactoryWithDestination(os.Stderr)
}

// NewLoggerFactoryWithDestination constructs a factory that writes to destination.
func NewLoggerFactoryWithDestination(destination io.Writer) *LoggerFactory {
	if destination == nil {
		destination = os.Stderr
	}
	return &LoggerFactory{destination: destination}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[normalizeLogLevel(requestedLogLevel)]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	var encoder zapcore.Encoder
	switch normalizeLogFormat(requestedLogFormat) {
	case LogFormatStructured:
		encoder = zapcore.NewJSONEncoder(structuredEncoderConfig())
	case LogFormatConsole:
		encoder = zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(factory.destination)), zap.NewAtomicLevelAt(zapLogLevel))
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(factory.destination)))), nil
}

func structuredEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        structuredTimeKeyConstant,
		LevelKey:       structuredLevelKeyConstant,
		NameKey:        structuredLoggerNameKeyConstant,
		CallerKey:      structuredCallerKeyConstant,
		MessageKey:     structuredMessageKeyConstant,
		StacktraceKey:  structuredStacktraceKeyConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// consoleEncoderConfig keeps only time, level and message so lifecycle sentences read as plain text.
func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          structuredTimeKeyConstant,
		LevelKey:         structuredLevelKeyConstant,
		MessageKey:       structuredMessageKeyConstant,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func normalizeLogLevel(level LogLevel) LogLevel {
	return LogLevel(strings.ToLower(strings.TrimSpace(string(level))))
}

func normalizeLogFormat(format LogFormat) LogFormat {
	return LogFormat(strings.ToLower(strings.TrimSpace(string(format))))
}

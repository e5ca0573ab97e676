package middleware

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	QUIET
)

var zapLevels = map[LogLevel]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
	// Above every level that is ever written
	QUIET: zapcore.FatalLevel + 1,
}

var (
	loggerMutex sync.RWMutex
	level       = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger      = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "component",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000"),
		EncodeLevel:      func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString("[" + l.CapitalString() + "]") },
		EncodeName:       func(name string, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(name + ":") },
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Sugar()
}

// SetLogLevel sets the current logging level
func SetLogLevel(l LogLevel) {
	zl, ok := zapLevels[l]
	if !ok {
		zl = zapcore.InfoLevel
	}
	level.SetLevel(zl)
}

// ParseLogLevel maps a level name to its LogLevel. Unknown names fall back to INFO.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "quiet":
		return QUIET
	default:
		return INFO
	}
}

// SetLogLevelFromString sets the log level from a string
func SetLogLevelFromString(level string) {
	SetLogLevel(ParseLogLevel(level))
}

// SetOutput redirects log output, mostly for tests
func SetOutput(w io.Writer) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	logger = newLogger(w)
}

func componentLogger(component string) *zap.SugaredLogger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	return logger.Named(component)
}

// LogDebug logs a debug message
func LogDebug(component, message string, args ...interface{}) {
	if level.Enabled(zapcore.DebugLevel) {
		componentLogger(component).Debugf(message, args...)
	}
}

// LogInfo logs an info message
func LogInfo(component, message string, args ...interface{}) {
	componentLogger(component).Infof(message, args...)
}

// LogWarn logs a warning message
func LogWarn(component, message string, args ...interface{}) {
	componentLogger(component).Warnf(message, args...)
}

// LogError logs an error message
func LogError(component, message string, args ...interface{}) {
	componentLogger(component).Errorf(message, args...)
}

// InitLogger initializes the logger with environment variables
func InitLogger() {
	// Check for LOG_LEVEL environment variable
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		SetLogLevelFromString(logLevel)
	}
}

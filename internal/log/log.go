package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log is the implementation of Logger
type log struct {
	*zap.SugaredLogger
}

// Logger is an interface that can log to different levels, trimmed to the
// handful of methods this module actually calls (structured info/debug/error
// logging, plus With for attaching fields like a run id).
type Logger interface {
	Infow(msg string, keyvals ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	With(args ...interface{}) Logger
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

const (
	infoLevel  = int(zapcore.InfoLevel)
	debugLevel = int(zapcore.DebugLevel)
)

// defaultLevel is the default level where statements are logged. Change the
// value of this variable before the first DefaultLogger call to change the
// level of the default logger.
var defaultLevel = infoLevel

// Allows the debug logs to be printed in envs where the test logs are set to debug level.
//
//nolint:gochecknoinits // We do want to overwrite the default log level here
func init() {
	debugEnv, isDebug := os.LookupEnv("DKG_TEST_LOGS")
	if isDebug && debugEnv == "DEBUG" {
		defaultLevel = debugLevel
	}
}

var isDefaultLoggerSet sync.Once

// DefaultLogger is the default logger that only logs at the `defaultLevel`.
func DefaultLogger() Logger {
	isDefaultLoggerSet.Do(func() {
		zap.ReplaceGlobals(newZapLogger(os.Stdout, getJSONEncoder(), defaultLevel))
	})

	return &log{zap.S()}
}

func newZapLogger(output zapcore.WriteSyncer, encoder zapcore.Encoder, level int) *zap.Logger {
	core := zapcore.NewCore(encoder, output, zapcore.Level(level))
	return zap.New(core, zap.WithCaller(true))
}

func getJSONEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()

	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewJSONEncoder(encoderConfig)
}

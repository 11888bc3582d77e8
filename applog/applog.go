package applog

import (
	"fmt"
	"ioctest/build"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger = zap.Logger

var (
	globalLogger  = newLogger(zapcore.InfoLevel, zapcore.AddSync(os.Stdout))
	logFile       *os.File
	fileSink      *asyncSink
	acceptingLogs int32 = 1
)

const (
	fileSinkBufferSize      = 4096
	fileSinkShutdownTimeout = 2 * time.Second
)

func Info(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Debug(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Error(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func LogStartup(launchArgs interface{}) {
	buildInfo := build.GetBuildInfo()
	buildCommit := "unknown"
	if buildInfo != nil && buildInfo.CommitHash != "" {
		buildCommit = buildInfo.CommitHash
	}

	Info("Application started",
		zap.String("buildCommit", buildCommit),
		zap.Any("launchArgs", launchArgs),
	)
}

func GetLogger() *Logger {
	return globalLogger
}

// Initialize replaces the default stdout-only logger with one that writes JSON
// entries both to stdout and to <logDir>/ioctest_<runName>.log. An empty logDir
// means "logs" under the current working directory. File writes go through an
// async sink that Shutdown drains.
func Initialize(runName string, rawLogLevel int, logDir string) error {
	if logDir == "" {
		workdir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current working directory: %w", err)
		}
		logDir = filepath.Join(workdir, "logs")
	}

	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilename := filepath.Join(logDir, fmt.Sprintf("ioctest_%s.log", runName))
	f, err := os.OpenFile(logFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", logFilename, err)
	}

	closeFileSink()
	logFile = f

	level := safeGetLogLevelOrDefault(rawLogLevel)
	jsonEncoder := zapcore.NewJSONEncoder(getEncoderConfig())
	fileSink = newAsyncSink(zapcore.NewCore(jsonEncoder, zapcore.AddSync(logFile), level), fileSinkBufferSize)

	l := zap.New(
		zapcore.NewTee(zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stdout), level), fileSink),
		zap.AddCaller(),
	).With(zap.String("run", runName))

	setLogger(l)
	atomic.StoreInt32(&acceptingLogs, 1)
	return nil
}

// Shutdown drains pending file entries, flushes the logger and closes the log
// file. Log calls made after Shutdown are dropped.
func Shutdown() {
	atomic.StoreInt32(&acceptingLogs, 0)
	_ = globalLogger.Sync()
	closeFileSink()
}

func closeFileSink() {
	if fileSink != nil {
		fileSink.Shutdown(fileSinkShutdownTimeout)
		fileSink = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func safeGetLogLevelOrDefault(rawLogLevel int) zapcore.Level {
	level := zapcore.Level(rawLogLevel)
	if level < zapcore.DebugLevel || level > zapcore.FatalLevel {
		return zapcore.InfoLevel
	}
	return level
}

func getEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339)) // Ensure UTC
	}
	return encoderConfig
}

func newLogger(level zapcore.Level, syncers ...zapcore.WriteSyncer) *Logger {
	jsonEncoder := zapcore.NewJSONEncoder(getEncoderConfig())

	cores := make([]zapcore.Core, 0, len(syncers))
	for _, syncer := range syncers {
		cores = append(cores, zapcore.NewCore(jsonEncoder, syncer, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func setLogger(l *Logger) {
	globalLogger = l
	zap.ReplaceGlobals(globalLogger)
}

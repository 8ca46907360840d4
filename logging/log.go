package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	LogLevelError   LogLevel = 0
	LogLevelWarning LogLevel = 1
	LogLevelInfo    LogLevel = 2
	LogLevelDebug   LogLevel = 3
)

var (
	LogFileMaxMB   = 20
	LogFileBackups = 3
)

// magic date, please don't change.
const timestampFormat = "2006-01-02 15:04:05.000000"

var log = newLogger()

func newLogger() *logrus.Logger {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = timestampFormat
	formatter.FullTimestamp = true

	l := &logrus.Logger{
		Out:       os.Stdout,
		Formatter: formatter,
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.ErrorLevel,
		ExitFunc:  os.Exit,
	}
	return l
}

func toLogrus(level LogLevel) logrus.Level {
	switch {
	case level <= LogLevelError:
		return logrus.ErrorLevel
	case level == LogLevelWarning:
		return logrus.WarnLevel
	case level == LogLevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// SetLogLevel takes the verbosity as counted on the command line, 0 is only
// errors and 3 or more is everything.
func SetLogLevel(newLevel int) {
	log.SetLevel(toLogrus(LogLevel(newLevel)))
}

// GetLogLevel returns the current verbosity.
func GetLogLevel() LogLevel {
	switch log.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LogLevelDebug
	case logrus.InfoLevel:
		return LogLevelInfo
	case logrus.WarnLevel:
		return LogLevelWarning
	}
	return LogLevelError
}

// SetLogFile adds a file hook so everything that makes it past the level
// filter also ends up in the log file at logFilePath.  The file is rotated
// at LogFileMaxMB.
func SetLogFile(logFilePath string) {
	w := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    LogFileMaxMB,
		MaxBackups: LogFileBackups,
	}
	writerMap := lfshook.WriterMap{
		logrus.DebugLevel: w,
		logrus.InfoLevel:  w,
		logrus.WarnLevel:  w,
		logrus.ErrorLevel: w,
		logrus.FatalLevel: w,
		logrus.PanicLevel: w,
	}
	// time="2018-07-23 10:47:03.617692" level=warning msg="..."
	log.Hooks.Add(lfshook.NewHook(
		writerMap,
		&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		},
	))
}

// SetOutput replaces the console writer.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Writer returns a writer that logs each line it gets at the given level.
// Close it when done.
func Writer(level LogLevel) *io.PipeWriter {
	return log.WriterLevel(toLogrus(level))
}

// WithField returns an entry tagged with key=value, for correlating the
// lines of one connection or one invoice.
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

func Fatalln(args ...interface{}) {
	log.Fatalln(args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}

func Fatal(args ...interface{}) {
	log.Fatal(args...)
}

func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func Debugln(args ...interface{}) {
	log.Debugln(args...)
}

func Infoln(args ...interface{}) {
	log.Infoln(args...)
}

func Warnln(args ...interface{}) {
	log.Warnln(args...)
}

func Errorln(args ...interface{}) {
	log.Errorln(args...)
}

func Debug(args ...interface{}) {
	log.Debug(args...)
}

func Info(args ...interface{}) {
	log.Info(args...)
}

func Warn(args ...interface{}) {
	log.Warn(args...)
}

func Error(args ...interface{}) {
	log.Error(args...)
}

// ParseLevel accepts either a verbosity number or a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "0", "error":
		return LogLevelError, nil
	case "1", "warn", "warning":
		return LogLevelWarning, nil
	case "2", "info":
		return LogLevelInfo, nil
	case "3", "debug":
		return LogLevelDebug, nil
	}
	return LogLevelError, fmt.Errorf("unknown log level %q", s)
}

func SetupTestLogs() {
	log.SetLevel(logrus.DebugLevel)
}

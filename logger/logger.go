// logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
)

// Log is the global logger instance of XMLog.
var Log *XMLog

func init() {
	Log = &XMLog{Logger: newConsoleLogger(os.Stderr, logrus.InfoLevel, false)}
}

// XMLog wraps logrus.Logger for application-specific logging.
type XMLog struct {
	*logrus.Logger
}

// Options controls how a logger is built.
type Options struct {
	// Dir enables the rotating file sink when non-empty; console output is then discarded.
	Dir     string
	Level   logrus.Level
	Verbose bool
	// Output is the console writer, os.Stderr when nil.
	Output io.Writer
	// MaxAge bounds how long rotated files are kept, 7 days when zero.
	MaxAge time.Duration
}

var defaultFieldsOrder = []string{
	common.SessionName, common.HostName, common.TaskName, common.StepName, common.CommandName,
}

// InitGlobalLogger initializes the global Log variable.
func InitGlobalLogger(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// New creates a new instance of XMLog.
func New(opts Options) (*XMLog, error) {
	level := opts.Level
	if opts.Verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if opts.Dir == "" {
		return &XMLog{Logger: newConsoleLogger(out, level, opts.Verbose)}, nil
	}

	if err := os.MkdirAll(opts.Dir, common.FileMode0700); err != nil {
		return nil, fmt.Errorf("failed to create log output directory %s: %w", opts.Dir, err)
	}
	logFilePath := filepath.Join(opts.Dir, common.AppName+".log")

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d", // Daily rotation
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetReportCaller(true)

	fileFormatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		FieldSeparator:         " | ",
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf(" [%s:%d %s]", filepath.Base(frame.File), frame.Line, filepath.Base(frame.Function))
		},
	}
	logger.SetFormatter(fileFormatter)

	logWriters := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		if logger.IsLevelEnabled(lvl) {
			logWriters[lvl] = writer
		}
	}
	logger.Hooks.Add(lfshook.NewHook(logWriters, fileFormatter))
	// The hook owns file output; the default writer would duplicate every line.
	logger.SetOutput(io.Discard)

	return &XMLog{Logger: logger}, nil
}

func newConsoleLogger(out io.Writer, level logrus.Level, verbose bool) *logrus.Logger {
	display := ShowAboveWarn
	if verbose {
		display = ShowAll
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       display,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldsOrder,
	})
	return logger
}

// ForSession returns an entry stamped with the session id.
func (xl *XMLog) ForSession(sessionID string) *logrus.Entry {
	return xl.WithField(common.SessionName, sessionID)
}

// ForHost returns an entry stamped with the session and target host.
func (xl *XMLog) ForHost(sessionID, host string) *logrus.Entry {
	return xl.WithFields(logrus.Fields{
		common.SessionName: sessionID,
		common.HostName:    host,
	})
}

// InfoTask logs at info level with a task field.
func (xl *XMLog) InfoTask(taskName string, message string, dynamicFields ...logrus.Fields) {
	xl.logWithStandardFields(logrus.InfoLevel, logrus.Fields{common.TaskName: taskName}, message, dynamicFields...)
}

// ErrorTask logs at error level with a task field and the error, if any.
func (xl *XMLog) ErrorTask(taskName string, err error, message string, dynamicFields ...logrus.Fields) {
	fixedFields := logrus.Fields{common.TaskName: taskName}
	if err != nil {
		fixedFields[logrus.ErrorKey] = err
	}
	xl.logWithStandardFields(logrus.ErrorLevel, fixedFields, message, dynamicFields...)
}

func (xl *XMLog) logWithStandardFields(level logrus.Level, fixedFields logrus.Fields, message string, dynamicFields ...logrus.Fields) {
	entry := xl.Logger.WithFields(fixedFields)
	if len(dynamicFields) > 0 && dynamicFields[0] != nil {
		entry = entry.WithFields(dynamicFields[0])
	}
	entry.Log(level, message)
}

package dtls

import (
	"github.com/pion/logging"
	log "github.com/sirupsen/logrus"
)

type loggerFactory struct {
	base *log.Entry
}

// NewLoggerFactory routes pion's leveled loggers into logrus. Each logger
// carries its pion scope as the "scope" field.
func NewLoggerFactory(base *log.Entry) logging.LoggerFactory {
	if base == nil {
		base = log.NewEntry(log.StandardLogger())
	}
	return &loggerFactory{base: base}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{e: f.base.WithField("scope", scope)}
}

type leveledLogger struct {
	e *log.Entry
}

func (l *leveledLogger) Trace(msg string)                          { l.e.Trace(msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) { l.e.Tracef(format, args...) }
func (l *leveledLogger) Debug(msg string)                          { l.e.Debug(msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l *leveledLogger) Info(msg string)                           { l.e.Info(msg) }
func (l *leveledLogger) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l *leveledLogger) Warn(msg string)                           { l.e.Warn(msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{})  { l.e.Warnf(format, args...) }
func (l *leveledLogger) Error(msg string)                          { l.e.Error(msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }

package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	// Critical logs at the highest severity without terminating the
	// process. Critical lines always pass the console appender threshold.
	Critical(args ...interface{})
	Criticalf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.Mutex
	logger Logger = mustAdapter(DefaultConfig())
)

func GetLogger() Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Init replaces the default console logger with one built from cfg.
// Called once at startup, before any worker goroutine exists.
func Init(cfg Config) error {
	l, err := newAdapter(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

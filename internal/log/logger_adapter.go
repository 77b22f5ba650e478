package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls the logger output format and destinations.
type Config struct {
	// Name is the component name substituted for %name in the pattern.
	Name string `mapstructure:"name" yaml:"name"`
	// Level is the threshold for the file appender (and for stdout when
	// no file is configured): debug, info, warning, error or critical.
	Level string `mapstructure:"level" yaml:"level"`
	// ConsoleLevel is the threshold for the console appender when a file
	// appender is active. The daemon keeps this at critical so journald
	// only sees lines that need operator attention.
	ConsoleLevel string `mapstructure:"console_level" yaml:"console_level"`
	// Pattern supports %time, %name, %level, %field, %msg and %n.
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	// Time is the Go layout used for %time.
	Time string `mapstructure:"time" yaml:"time"`

	File FileAppenderOpt `mapstructure:"file" yaml:"file"`
}

func DefaultConfig() Config {
	return Config{
		Name:         "ipfix-enricher",
		Level:        "debug",
		ConsoleLevel: "critical",
		Pattern:      "%time - %name - %level - %msg%n",
		Time:         "2006-01-02 15:04:05",
	}
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func mustAdapter(cfg Config) Logger {
	l, err := newAdapter(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

func newAdapter(cfg Config) (Logger, error) {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Pattern == "" {
		cfg.Pattern = def.Pattern
	}
	if cfg.Time == "" {
		cfg.Time = def.Time
	}
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.ConsoleLevel == "" {
		cfg.ConsoleLevel = def.ConsoleLevel
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	consoleRank, err := levelRankOf(cfg.ConsoleLevel)
	if err != nil {
		return nil, err
	}

	f := &formatter{
		pattern: cfg.Pattern,
		time:    cfg.Time,
		name:    cfg.Name,
	}

	l := logrus.New()
	l.SetFormatter(f)
	l.SetLevel(level)

	if cfg.File.Filename != "" {
		if err := os.MkdirAll(dirOf(cfg.File.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.SetOutput(NewMultiWriter().AddFileAppender(cfg.File))
		l.AddHook(newConsoleAppender(os.Stdout, f, consoleRank))
	} else {
		l.SetOutput(NewMultiWriter().Add(os.Stdout))
	}

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

// parseLevel maps the configured names onto logrus levels. The contract
// uses Python-style names, so warning and critical are accepted.
func parseLevel(s string) (logrus.Level, error) {
	if s == "critical" || s == "CRITICAL" {
		return logrus.FatalLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Critical logs at logrus's fatal severity without the exit that
// Fatal carries, so it passes every appender threshold up to critical.
func (l *logrusAdapter) Critical(args ...interface{}) {
	l.entry.Log(logrus.FatalLevel, args...)
}
func (l *logrusAdapter) Criticalf(format string, args ...interface{}) {
	l.entry.Logf(logrus.FatalLevel, format, args...)
}

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}

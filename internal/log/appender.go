package log

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// FileAppenderOpt configures the rotating file appender.
type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days, 0 keeps all
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

func (m *MultiWriter) AddFileAppender(opt FileAppenderOpt) *MultiWriter {
	m.writers = append(m.writers, &lumberjack.Logger{
		Filename:   opt.Filename,
		MaxSize:    opt.MaxSize,
		MaxBackups: opt.MaxBackups,
		MaxAge:     opt.MaxAge,
		Compress:   opt.Compress,
	})
	return m
}

// consoleAppender mirrors high-severity lines to a second writer. The
// daemon runs with the file appender as primary output and this hook at
// the critical threshold, so journald stays quiet during normal operation.
type consoleAppender struct {
	w       io.Writer
	f       logrus.Formatter
	minRank int
}

func newConsoleAppender(w io.Writer, f logrus.Formatter, minRank int) *consoleAppender {
	return &consoleAppender{w: w, f: f, minRank: minRank}
}

func (a *consoleAppender) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (a *consoleAppender) Fire(entry *logrus.Entry) error {
	if entryRank(entry) < a.minRank {
		return nil
	}
	line, err := a.f.Format(entry)
	if err != nil {
		return err
	}
	_, err = a.w.Write(line)
	return err
}

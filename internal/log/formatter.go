package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
	name    string
}

// Format renders one entry according to the pattern. Supported tokens:
// %time, %name, %level, %field, %msg, %n.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%name", f.name, 1)
	output = strings.Replace(output, "%level", levelName(entry), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%n", "\n", 1)
	return []byte(output), nil
}

// levelName maps logrus levels onto the names the log consumers match on:
// DEBUG, INFO, WARNING, ERROR, CRITICAL.
func levelName(entry *logrus.Entry) string {
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return "CRITICAL"
	case logrus.WarnLevel:
		return "WARNING"
	default:
		return strings.ToUpper(entry.Level.String())
	}
}

// levelRankOf orders the contract level names for appender thresholds.
func levelRankOf(name string) (int, error) {
	switch strings.ToLower(name) {
	case "debug", "trace":
		return 0, nil
	case "info":
		return 1, nil
	case "warn", "warning":
		return 2, nil
	case "error":
		return 3, nil
	case "critical", "fatal", "panic":
		return 4, nil
	}
	return 0, fmt.Errorf("invalid log level %q", name)
}

func entryRank(entry *logrus.Entry) int {
	rank, err := levelRankOf(levelName(entry))
	if err != nil {
		return 0
	}
	return rank
}

func buildFields(entry *logrus.Entry) string {
	var fields []string
	for key, val := range entry.Data {
		if key == logrus.ErrorKey {
			continue
		}
		stringVal, ok := val.(string)
		if !ok {
			stringVal = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+stringVal)
	}
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		fields = append(fields, "error="+fmt.Sprint(err))
	}
	return strings.Join(fields, ",")
}

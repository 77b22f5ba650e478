package logview

import (
	"regexp"
	"strings"

	"github.com/mgutz/ansi"
)

var levelColors = map[string]string{
	"ERROR":    ansi.ColorCode("red"),
	"WARNING":  ansi.ColorCode("yellow"),
	"CRITICAL": ansi.ColorCode("red+h"),
	"INFO":     ansi.ColorCode("blue"),
	"DEBUG":    ansi.ColorCode("black+h"),
}

var (
	successColor = ansi.ColorCode("green")
	boldStyle    = ansi.ColorCode("default+b")

	reLevelWord   = regexp.MustCompile(`\b(ERROR|WARNING|CRITICAL|INFO|DEBUG)\b`)
	reSuccessRate = regexp.MustCompile(`(\d+\.?\d*)% success`)
	reErrorsCount = regexp.MustCompile(`Errors: ([\d,]+)`)
)

// Colorize applies the tail rules to one log line: level names by
// severity, success percentages green, error counts red when non-zero,
// the statistics header bold.
func Colorize(line string) string {
	line = reLevelWord.ReplaceAllStringFunc(line, func(level string) string {
		return levelColors[level] + level + ansi.Reset
	})

	line = reSuccessRate.ReplaceAllString(line, successColor+"${1}% success"+ansi.Reset)

	line = reErrorsCount.ReplaceAllStringFunc(line, func(m string) string {
		count := reErrorsCount.FindStringSubmatch(m)[1]
		color := successColor
		if uncomma(count) > 0 {
			color = levelColors["ERROR"]
		}
		return "Errors: " + color + count + ansi.Reset
	})

	if strings.Contains(line, "Statistics:") {
		line = boldStyle + line + ansi.Reset
	}
	return line
}

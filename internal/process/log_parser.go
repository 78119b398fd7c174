package process

import "strings"

var logLevels = map[string]bool{
	"trace":   true,
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
	"fatal":   true,
}

// ParseLogLevel extracts a log level from a backend output line.
// It recognizes "[level] message" and "LEVEL: message" prefixes and
// treats everything else as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) > 2 && line[0] == '[' {
		if end := strings.Index(line, "] "); end != -1 {
			token := strings.ToLower(line[1:end])
			if logLevels[token] {
				return token, line[end+2:]
			}
		}
	}

	if colon := strings.Index(line, ": "); colon > 0 && colon <= len("warning") {
		token := strings.ToLower(line[:colon])
		if logLevels[token] {
			return token, line[colon+2:]
		}
	}

	return "info", line
}

// Package logger provides structured logging for the bridge. All output is
// zerolog; sensitive values (session tokens, JWTs, bearer headers) are
// masked before they reach the sink.
package logger

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the global logger. It deliberately does not depend on
// the config package so every package may log.
type Options struct {
	// Level is the log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// File is the log file path; empty means stdout.
	File string
}

var sensitivePatterns = []*regexp.Regexp{
	// JWT (base64 header.payload.signature)
	regexp.MustCompile(`(eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+)`),
	// Bearer header values
	regexp.MustCompile(`(Bearer\s+[a-zA-Z0-9\-_\.]+)`),
	// key=value style secrets (token=, session=, secret=, password=, key=)
	regexp.MustCompile(`((?:api[_-]?key|apikey|key|token|session[_-]?id|session|secret|password)\s*[=:]\s*)([a-zA-Z0-9\-_\.]{10,})`),
}

// maskedWriter masks sensitive values before writing.
type maskedWriter struct {
	underlying io.Writer
}

func (w *maskedWriter) Write(p []byte) (n int, err error) {
	masked := MaskSensitive(string(p))
	return w.underlying.Write([]byte(masked))
}

// Setup initializes the global logger.
func Setup(opts Options) {
	zerolog.SetGlobalLevel(parseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Warn().Err(err).Str("file", opts.File).Msg("cannot open log file, falling back to stdout")
		} else {
			output = file
		}
	}

	maskedOutput := &maskedWriter{underlying: output}

	if opts.Format == "text" {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        maskedOutput,
			TimeFormat: time.RFC3339,
		}
		log.Logger = zerolog.New(consoleWriter).With().Timestamp().Caller().Logger()
	} else {
		log.Logger = zerolog.New(maskedOutput).With().Timestamp().Caller().Logger()
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// MaskSensitive masks credentials embedded in a string.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// key=value form keeps the key and masks the value
			if strings.Contains(match, "=") || strings.Contains(match, ":") {
				parts := regexp.MustCompile(`[=:]`).Split(match, 2)
				if len(parts) == 2 {
					prefix := parts[0] + string(match[len(parts[0])])
					value := strings.TrimSpace(parts[1])
					return prefix + maskValue(value)
				}
			}
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer " + maskValue(strings.TrimPrefix(match, "Bearer "))
			}
			return maskValue(match)
		})
	}
	return result
}

// maskValue keeps the first and last 4 characters of a value.
func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// Debug logs at debug level.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info logs at info level.
func Info() *zerolog.Event {
	return log.Info()
}

// Warn logs at warn level.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error logs at error level.
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs at fatal level and exits.
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Package logger provides centralized logging functionality for luashell.
// Log records never go to the serial terminal: they are written to stderr or a log file
// so that the byte stream seen by the device user only carries prompts, echoes and diagnostics.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the global logger instance used throughout luashell.
var Logger *log.Logger

// output is the destination shared by the global logger and component loggers.
var output io.Writer = os.Stderr

// testMode disables colors so component log lines are stable in tests.
var testMode bool

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetTimeFormat("")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets up the logger based on CLI flags and environment variables.
// CLI flags take precedence over environment variables.
func Configure(logLevel string, logFile string, test bool) error {
	// Set log level with precedence: CLI flag > env var > default
	level := logLevel
	if level == "" {
		level = strings.ToLower(os.Getenv("LUASHELL_LOG_LEVEL"))
	}
	if level == "" {
		level = "info"
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		out = file
	}

	output = out
	testMode = test

	Logger = log.New(out)
	Logger.SetTimeFormat("")
	Logger.SetLevel(parseLogLevel(level))
	Logger.SetColorProfile(colorProfile(out))

	return nil
}

// SetOutput redirects the global logger, mostly for tests.
func SetOutput(w io.Writer) {
	output = w
	Logger.SetOutput(w)
}

// parseLogLevel converts string to log level
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// colorProfile picks the terminal color profile for the log destination.
// Files and test runs get plain ASCII.
func colorProfile(w io.Writer) termenv.Profile {
	if testMode {
		return termenv.Ascii
	}
	if f, ok := w.(*os.File); ok {
		return termenv.NewOutput(f).ColorProfile()
	}
	return termenv.Ascii
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatal logs a fatal message with optional key-value pairs and exits.
func Fatal(msg interface{}, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
}

// ModeTransition logs a session mode change for debugging.
func ModeTransition(from string, to string) {
	Debug("Mode transition", "from", from, "to", to)
}

// ModuleOperation logs module loader activity for debugging.
func ModuleOperation(operation string, module string, details ...interface{}) {
	Debug("Module operation", "operation", operation, "module", module, "details", details)
}

// NewStyledLogger creates a new logger with custom styles and prefix for component-specific logging.
// The prefix parameter names the component (e.g., "Session", "Loader", "Runtime").
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")). // Blue background
		Foreground(lipgloss.Color("15"))  // White text

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")). // Red background
		Foreground(lipgloss.Color("15"))   // White text

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("240")). // Gray background
		Foreground(lipgloss.Color("15"))   // White text

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")). // Orange background
		Foreground(lipgloss.Color("15"))   // White text

	styles.Levels[log.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("88")). // Dark red background
		Foreground(lipgloss.Color("15"))  // White text

	styles.Keys["mode"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))   // Purple
	styles.Keys["line"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))   // Blue
	styles.Keys["module"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46")) // Green
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	styles.Keys["bytes"] = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange

	styles.Values["mode"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	componentLogger := log.NewWithOptions(output, log.Options{
		Prefix: prefix + " ",
	})
	componentLogger.SetStyles(styles)
	componentLogger.SetColorProfile(colorProfile(output))

	// Match the global logger's level
	componentLogger.SetLevel(Logger.GetLevel())

	return componentLogger
}

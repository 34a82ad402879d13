package util

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the process logger. It stays nil until InitLoggerTo runs and the
// helpers below drop messages while it is nil.
var Logger *log.Logger

var prefixStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(lipgloss.Color("#0E9F6E")).
	Bold(true).
	Padding(0, 1).
	MarginRight(1)

// NewLogger builds the command line logger. Debug adds caller and time to
// every line and lowers the level so provider traces show up.
func NewLogger(w io.Writer, debug bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		TimeFormat:      "15:04:05",
		Prefix:          prefixStyle.Render("Provedores"),
		Level:           log.InfoLevel,
	})
	l.SetColorProfile(termenv.TrueColor)
	if debug {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// InitLoggerTo installs the process logger writing to w
func InitLoggerTo(w io.Writer) {
	Logger = NewLogger(w, IsDebug)
	Debug("debug logging enabled")
}

// Debug logs only in debug mode
func Debug(msg interface{}, keyvals ...interface{}) {
	if IsDebug && Logger != nil {
		Logger.Debug(fmt.Sprint(msg), keyvals...)
	}
}

func Info(msg interface{}, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(fmt.Sprint(msg), keyvals...)
	}
}

func Warn(msg interface{}, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(fmt.Sprint(msg), keyvals...)
	}
}

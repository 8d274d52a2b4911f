// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/term"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
	// FormatAuto picks text on a terminal and json otherwise.
	FormatAuto = "auto"
)

type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarn
	LogLevelError
)

type Logger struct {
	TimeFormat string
	Format     string
	Level      LogLevel

	// File writer - always written regardless of level
	file io.Writer

	// Console writers - filtered by level
	stdout io.Writer
	stderr io.Writer

	debugMode bool

	mu *sync.Mutex
}

func New(timeFormat string) Logger {
	return Logger{
		TimeFormat: timeFormat,
		Level:      LogLevelInfo,
		Format:     FormatText,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		mu:         &sync.Mutex{},
	}
}

// SetFormat sets the output format. Unknown values fall back to text.
func (l *Logger) SetFormat(format string) {
	switch format {
	case FormatJSON:
		l.Format = FormatJSON
	case FormatAuto:
		l.Format = FormatText
		if f, ok := l.stdout.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			l.Format = FormatJSON
		}
	default:
		l.Format = FormatText
	}
}

// SetLevel sets the minimum console log level (info, warn, error)
func (l *Logger) SetLevel(level string) {
	switch level {
	case "warn":
		l.Level = LogLevelWarn
	case "error":
		l.Level = LogLevelError
	default:
		l.Level = LogLevelInfo
	}
}

// SetWriter sets both stdout and stderr to the same writer
func (l *Logger) SetWriter(w io.Writer) {
	l.stdout = w
	l.stderr = w
}

// SetWriters sets stdout and stderr separately
func (l *Logger) SetWriters(stdout, stderr io.Writer) {
	l.stdout = stdout
	l.stderr = stderr
}

// SetFileWriter sets a writer that receives every line regardless of level
func (l *Logger) SetFileWriter(w io.Writer) {
	l.file = w
}

func (l *Logger) SetDebugMode(enabled bool) {
	l.debugMode = enabled
}

// getTrace returns the location of whoever called Error.
func getTrace() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return ""
	}
	return file + "#" + strconv.Itoa(line) + ": "
}

func (l Logger) format(level string, fields map[string]interface{}, msg string) string {
	if l.Format == FormatJSON {
		entry := map[string]interface{}{
			"time":    time.Now().Format(time.RFC3339),
			"level":   level,
			"message": msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, _ := json.Marshal(entry)
		return string(data)
	}

	pad := "         "[:9-len(level)]
	return fmt.Sprintf("%s [%s]%s%s", time.Now().Format(l.TimeFormat), level, pad, msg)
}

func (l Logger) write(console io.Writer, show bool, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		fmt.Fprintln(l.file, line)
	}
	if show && console != nil {
		fmt.Fprintln(console, line)
	}
}

// Debug writes only when debug mode is enabled
func (l Logger) Debug(msg string) {
	if !l.debugMode {
		return
	}
	l.write(l.stdout, true, l.format("DEBUG", nil, msg))
}

func (l Logger) Info(msg string) {
	l.write(l.stdout, l.Level <= LogLevelInfo, l.format("INFO", nil, msg))
}

func (l Logger) Warn(msg string) {
	l.write(l.stdout, l.Level <= LogLevelWarn, l.format("WARN", nil, msg))
}

// Error is always shown on stderr.
func (l Logger) Error(e error) {
	var line string
	if l.Format == FormatJSON {
		line = l.format("ERROR", map[string]interface{}{"trace": getTrace()}, e.Error())
	} else {
		line = l.format("ERROR", nil, getTrace()+e.Error())
	}
	l.write(l.stderr, true, line)
}

// ConnRecord describes one handled connection.
type ConnRecord struct {
	ID       string
	Remote   string
	Outcome  string
	Bytes    int
	PasteID  string
	Duration time.Duration
}

// Conn writes a per-connection access line.
func (l Logger) Conn(r ConnRecord) {
	pasteID := r.PasteID
	if pasteID == "" {
		pasteID = "-"
	}

	var line string
	if l.Format == FormatJSON {
		line = l.format("INFO", map[string]interface{}{
			"conn_id":     r.ID,
			"remote":      r.Remote,
			"outcome":     r.Outcome,
			"bytes":       r.Bytes,
			"paste_id":    pasteID,
			"duration_ms": r.Duration.Milliseconds(),
		}, "connection")
	} else {
		line = l.format("INFO", nil, fmt.Sprintf("%s %s %s %d %s %s",
			r.ID, r.Remote, r.Outcome, r.Bytes, pasteID, r.Duration.Round(time.Microsecond)))
	}

	l.write(l.stdout, l.Level <= LogLevelInfo, line)
}

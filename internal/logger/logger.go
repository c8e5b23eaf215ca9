package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes categorized, colorized lines to stdout and a plain copy to a
// rolling log file. Category is a short uppercase tag (DATABASE, KAFKA, ...)
// so the combined output of all components stays greppable.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	debug bool
}

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)
)

func NewLogger() *Logger {
	l := &Logger{
		debug: os.Getenv("LOG_DEBUG") == "true",
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		path := filepath.Join(logDir, "smartwish.log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			l.file = f
		}
	}

	return l
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) write(level, category, message string, c *color.Color) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, level, category, message)

	c.Fprintln(os.Stdout, line)
	if l.file != nil {
		fmt.Fprintln(l.file, line)
	}
}

func (l *Logger) Debug(category, message string) {
	if !l.debug {
		return
	}
	l.write("DEBUG", category, message, debugColor)
}

func (l *Logger) Info(category, message string) {
	l.write("INFO", category, message, infoColor)
}

func (l *Logger) Warn(category, message string) {
	l.write("WARN", category, message, warnColor)
}

func (l *Logger) Error(category, message string) {
	l.write("ERROR", category, message, errorColor)
}

func (l *Logger) Fatal(category, message string) {
	l.write("FATAL", category, message, fatalColor)
	l.Close()
	os.Exit(1)
}

// LogProcess marks lifecycle stages (STARTUP, SHUTDOWN, component init).
func (l *Logger) LogProcess(stage, message string) {
	l.Info("PROCESS", fmt.Sprintf("[%s] %s", stage, message))
}

func (l *Logger) LogDatabase(action, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] [%s] %s", action, table, message))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] [%s] %s", action, topic, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogPayment(action, id, message string) {
	l.Info("PAYMENT", fmt.Sprintf("[%s] [%s] %s", action, id, message))
}

func (l *Logger) LogOrder(action, id, message string) {
	l.Info("ORDER", fmt.Sprintf("[%s] [%s] %s", action, id, message))
}

func (l *Logger) LogKiosk(action, id, message string) {
	l.Info("KIOSK", fmt.Sprintf("[%s] [%s] %s", action, id, message))
}

func (l *Logger) LogPrint(action, id, message string) {
	l.Info("PRINT", fmt.Sprintf("[%s] [%s] %s", action, id, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

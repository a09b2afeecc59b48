// Package reactorlog provides the structured logging abstraction used by
// the reactor core and its domain adapters. It exists so the core can log
// faults, reboots, and implosions without binding callers to any one
// logging backend.
package reactorlog

import (
	"fmt"
	"log"
	"os"
)

// Logger is the structured logging surface consulted by a Reactor. Callers
// may supply their own implementation (to bridge into zap, zerolog,
// logrus, or a service-wide logger) or use New for a standard-library
// default.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

// stdLogger implements Logger on top of the standard library's log
// package, with one prefixed *log.Logger per level.
type stdLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
}

// New returns the default Logger: level-prefixed lines on stderr (error,
// warn) and stdout (info, debug), timestamped.
func New() Logger {
	return &stdLogger{
		errorLogger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
		warnLogger:  log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		infoLogger:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		debugLogger: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
	}
}

// Discard returns a Logger that drops every line, for tests that would
// otherwise drown in reboot/implosion chatter.
func Discard() Logger { return discardLogger{} }

func (l *stdLogger) Error(args ...interface{})                 { l.errorLogger.Output(2, fmt.Sprint(args...)) }
func (l *stdLogger) Errorf(format string, args ...interface{}) { l.errorLogger.Output(2, fmt.Sprintf(format, args...)) }
func (l *stdLogger) Warn(args ...interface{})                  { l.warnLogger.Output(2, fmt.Sprint(args...)) }
func (l *stdLogger) Warnf(format string, args ...interface{})  { l.warnLogger.Output(2, fmt.Sprintf(format, args...)) }
func (l *stdLogger) Info(args ...interface{})                  { l.infoLogger.Output(2, fmt.Sprint(args...)) }
func (l *stdLogger) Infof(format string, args ...interface{})  { l.infoLogger.Output(2, fmt.Sprintf(format, args...)) }
func (l *stdLogger) Debug(args ...interface{})                 { l.debugLogger.Output(2, fmt.Sprint(args...)) }
func (l *stdLogger) Debugf(format string, args ...interface{}) { l.debugLogger.Output(2, fmt.Sprintf(format, args...)) }

type discardLogger struct{}

func (discardLogger) Error(args ...interface{})                  {}
func (discardLogger) Errorf(format string, args ...interface{})  {}
func (discardLogger) Warn(args ...interface{})                   {}
func (discardLogger) Warnf(format string, args ...interface{})   {}
func (discardLogger) Info(args ...interface{})                   {}
func (discardLogger) Infof(format string, args ...interface{})   {}
func (discardLogger) Debug(args ...interface{})                  {}
func (discardLogger) Debugf(format string, args ...interface{})  {}

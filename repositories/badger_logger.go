package repositories

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var _ badger.Logger = (*BadgerLogger)(nil)

// BadgerLogger redirects the internal logs of Badger to the application slog.Logger,
// tagged with a component attribute so they can be filtered out.
type BadgerLogger struct {
	log *slog.Logger
}

func NewBadgerLogger(log *slog.Logger) *BadgerLogger {
	return &BadgerLogger{log: log.With("component", "badger")}
}

// Badger terminates most lines with a newline, slog adds its own.
func format(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

func (l *BadgerLogger) Errorf(f string, args ...any) {
	l.log.Error(format(f, args...))
}

func (l *BadgerLogger) Warningf(f string, args ...any) {
	l.log.Warn(format(f, args...))
}

func (l *BadgerLogger) Infof(f string, args ...any) {
	l.log.Info(format(f, args...))
}

func (l *BadgerLogger) Debugf(f string, args ...any) {
	l.log.Debug(format(f, args...))
}

package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter routes badger's internal logging into logrus.
// Badger's info chatter is demoted to debug so an in-memory store stays quiet during a crawl.
type BadgerLogrusAdapter struct {
	entry *logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter tagged with component=badgerdb
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry: entry.WithField("component", "badgerdb")}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) {
	l.entry.Errorf(trimNewline(f), v...)
}

func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) {
	l.entry.Warnf(trimNewline(f), v...)
}

func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) {
	l.entry.Debugf(trimNewline(f), v...)
}

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) {
	l.entry.Tracef(trimNewline(f), v...)
}

// badger terminates its format strings with "\n", logrus adds its own
func trimNewline(f string) string {
	return strings.TrimSuffix(f, "\n")
}

package log

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// WatermillLogger adapts a logrus entry to watermill.LoggerAdapter.
type WatermillLogger struct {
	entry *logrus.Entry
}

func NewWatermill(entry *logrus.Entry) *WatermillLogger {
	return &WatermillLogger{entry: entry}
}

func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithError(err).WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

// Debug is noisy in watermill, so it goes one level down.
func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

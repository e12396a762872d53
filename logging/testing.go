package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that writes through `tb.Log`, so lines are attributed to the
// right test even when tests run in parallel. Times are in the local timezone.
func NewTestAppender(tb testing.TB) Appender {
	return testAppender{tb}
}

// Write logs the entry with the caller's file and line, not this method's.
func (tapp testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatEntry(entry, fields)
	tapp.tb.Log(line)
	return err
}

// Sync is a no-op.
func (tapp testAppender) Sync() error {
	return nil
}

// Package testutil provides shared helpers for tests.
package testutil

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewTestLogger creates a logger that discards output, keeping test output clean.
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// NewVerboseTestLogger creates a debug-level logger writing to stdout, for
// diagnosing failing tests.
func NewVerboseTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

package test

import (
	"os"
	"testing"

	"github.com/drand/ceremony/log"
)

// LogLevel returns the level to default the logger based on the CEREMONY_TEST_LOGS presence
func LogLevel(t testing.TB) int {
	logLevel := log.InfoLevel
	debugEnv, isDebug := os.LookupEnv("CEREMONY_TEST_LOGS")
	if isDebug && debugEnv == "DEBUG" {
		t.Log("Enabling DebugLevel logs")
		logLevel = log.DebugLevel
	}
	return logLevel
}

// Logger returns a configured logger
func Logger(t testing.TB) log.Logger {
	return log.New(nil, LogLevel(t), true).With("testName", t.Name())
}

// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires up the indexer's per-subsystem loggers. A single
// backend is created and every subsystem logger is carved out of it, so
// setting a level on one subsystem never affects another.
//
// Loggers must not be used before InitLogRotators has been called with a
// log file; doing so early during startup, before any component is built,
// is the caller's responsibility.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// backendLog is the logging backend used to create all subsystem loggers.
// It must not be used before the log rotator has been initialized.
var backendLog = btclog.NewBackend(logWriter{})

// LogRotator is the rotating file output. It should be closed on shutdown.
var LogRotator *rotator.Rotator

var initiated = false

// Subsystem tags, one per component named in spec.md §2.
const (
	TagUpstream  = "UPST" // C1 Upstream Client
	TagCache     = "CACH" // C2 Preview Cache
	TagStore     = "STOR" // C3 Store
	TagAdaptive  = "ADPT" // C4 Adaptive Controllers
	TagPipeline  = "PIPE" // C5 Inscription Pipeline
	TagValidator = "VALD" // C6 Protocol Validators
	TagScanner   = "SCAN" // C7 Block Scanner
	TagTransfer  = "XFER" // C8 Transfer Tracker
	TagPattern   = "PTRN" // C9 Pattern Generator
	TagIndexer   = "NDXR" // top-level wiring
)

var allTags = []string{
	TagUpstream, TagCache, TagStore, TagAdaptive, TagPipeline,
	TagValidator, TagScanner, TagTransfer, TagPattern, TagIndexer,
}

var subsystemLoggers = make(map[string]btclog.Logger, len(allTags))

func init() {
	for _, tag := range allTags {
		subsystemLoggers[tag] = backendLog.Logger(tag)
	}
}

// Get returns the logger registered for tag, or false if tag is unknown.
func Get(tag string) (btclog.Logger, bool) {
	l, ok := subsystemLoggers[tag]
	return l, ok
}

// InitLogRotators initializes the logging rotator to write logs to logFile
// and create roll files alongside it. It must be called before any
// subsystem logger is used.
func InitLogRotators(logFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
			os.Exit(1)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the logging level for the given subsystem tag. Unknown
// tags are ignored; invalid levels default to Info.
func SetLogLevel(tag string, level string) {
	l, ok := subsystemLoggers[tag]
	if !ok {
		return
	}
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}
	l.SetLevel(lvl)
}

// SetLogLevels sets every subsystem logger to the given level.
func SetLogLevels(level string) {
	for tag := range subsystemLoggers {
		SetLogLevel(tag, level)
	}
}

// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging provides the structured logger used throughout the
// engine. The teacher's github.com/luxfi/log wraps go.uber.org/zap behind
// a bespoke interface; we depend on zap directly, which is the logging
// engine underneath it, rather than reconstruct that interface from
// scratch (see DESIGN.md).
package logging

import (
	"go.uber.org/zap"
)

// Logger is a structured, leveled logger. Every component that logs
// receives one via constructor injection rather than reaching for a
// package-level global.
type Logger = *zap.SugaredLogger

// NewProduction returns a JSON logger suitable for production use.
func NewProduction() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// NewDevelopment returns a human-readable console logger.
func NewDevelopment() Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() Logger {
	return zap.NewNop().Sugar()
}

/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package logger is the structured logging facade used across the driver.
// It follows the teacher's FuncLog/Entry idiom: every component accepts a
// lazily-resolved FuncLog instead of a concrete logger, so a connection built
// before a logger is attached still produces valid (if discarded) entries.
package logger

import (
	"context"
	"sync"

	logent "github/sabouaram/boltdriver/logger/entry"
	loglvl "github/sabouaram/boltdriver/logger/level"
	"github.com/sirupsen/logrus"
)

// Logger is the minimal structured-logging surface the driver depends on.
type Logger interface {
	// Entry starts a new structured log line at the given level.
	Entry(lvl loglvl.Level, msg string, args ...interface{}) logent.Entry
	// SetLevel adjusts the minimum level that reaches the underlying writer.
	SetLevel(lvl loglvl.Level)
}

// FuncLog resolves to the Logger to use at call time, matching the teacher's
// lazy-binding pattern (a component may be constructed before its logger is set).
type FuncLog func() Logger

type logger struct {
	mut sync.RWMutex
	out *logrus.Logger
	ctx func() context.Context
}

// New builds a Logger backed by logrus. ctxFct may be nil; it is consulted only
// for future context-aware hooks and is never required to be non-nil.
func New(ctxFct func() context.Context) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return &logger{out: l, ctx: ctxFct}
}

func (l *logger) Entry(lvl loglvl.Level, msg string, args ...interface{}) logent.Entry {
	return logent.NewSinked(l, lvl, msg, args...)
}

func (l *logger) SetLevel(lvl loglvl.Level) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.out.SetLevel(lvl.Logrus())
}

// Write implements logent.Sink: it renders the finished entry through logrus.
func (l *logger) Write(e logent.Entry) {
	l.mut.RLock()
	out := l.out
	l.mut.RUnlock()

	if out == nil || e.Level() == loglvl.NilLevel {
		return
	}

	out.WithFields(e.Logrus()).Log(e.Level().Logrus(), e.Message())
}

// Discard is a Logger that drops every entry; useful as a safe zero-value default.
func Discard() Logger {
	return discard{}
}

type discard struct{}

func (discard) Entry(lvl loglvl.Level, msg string, args ...interface{}) logent.Entry {
	return logent.New(lvl)
}

func (discard) SetLevel(loglvl.Level) {}

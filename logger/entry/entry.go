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

// Package entry provides the fluent, chainable builder used for every log line
// emitted by the driver: Entry(level, msg).FieldAdd(...).ErrorAdd(...).Log().
package entry

import (
	"fmt"

	logfld "github/sabouaram/boltdriver/logger/fields"
	loglvl "github/sabouaram/boltdriver/logger/level"
	"github.com/sirupsen/logrus"
)

// Sink receives a finished entry. The root logger implements it.
type Sink interface {
	Write(e Entry)
}

// Entry is an in-flight structured log line. All mutators return a new Entry
// so a builder chain is safe to branch.
type Entry struct {
	lvl    loglvl.Level
	msg    string
	fields logfld.Fields
	err    error
	sink   Sink
}

// New creates a bare entry at the given level with no sink attached; calling
// Log() on it is a safe no-op, matching the teacher's "logger may be nil" idiom.
func New(lvl loglvl.Level) Entry {
	return Entry{lvl: lvl, fields: logfld.Fields{}}
}

func newWithSink(sink Sink, lvl loglvl.Level, msg string, args ...interface{}) Entry {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return Entry{lvl: lvl, msg: msg, fields: logfld.Fields{}, sink: sink}
}

// NewSinked is used internally by Logger.Entry to attach the writer.
func NewSinked(sink Sink, lvl loglvl.Level, msg string, args ...interface{}) Entry {
	return newWithSink(sink, lvl, msg, args...)
}

// FieldAdd attaches a structured key/value pair and returns the updated entry.
func (e Entry) FieldAdd(key string, val interface{}) Entry {
	e.fields = e.fields.Add(key, val)
	return e
}

// FieldMerge merges a whole Fields map into the entry.
func (e Entry) FieldMerge(f logfld.Fields) Entry {
	e.fields = e.fields.Merge(f)
	return e
}

// ErrorAdd attaches an error to the entry. When asError is true and the level
// is below Error, the level is raised to ErrorLevel, matching the teacher's
// "an attached error always surfaces" rule.
func (e Entry) ErrorAdd(asError bool, err error) Entry {
	if err == nil {
		return e
	}
	e.err = err
	if asError && e.lvl > loglvl.ErrorLevel {
		e.lvl = loglvl.ErrorLevel
	}
	return e.FieldAdd("error", err.Error())
}

// Level returns the entry's current level.
func (e Entry) Level() loglvl.Level {
	return e.lvl
}

// Error returns the attached error, if any.
func (e Entry) Error() error {
	return e.err
}

// Fields returns the structured fields currently attached.
func (e Entry) Fields() logfld.Fields {
	return e.fields
}

// Message returns the formatted message.
func (e Entry) Message() string {
	return e.msg
}

// Logrus renders the entry as a standalone logrus.Fields map, used by the sink.
func (e Entry) Logrus() logrus.Fields {
	f := make(logrus.Fields, len(e.fields))
	for k, v := range e.fields {
		f[k] = v
	}
	return f
}

// Log emits the entry through its sink. Calling Log on a sink-less entry is a no-op.
func (e Entry) Log() {
	if e.sink == nil {
		return
	}
	e.sink.Write(e)
}

// Check is a convenience for call sites that only want to log failures: it
// logs only when an error is attached, at lvlKO; otherwise it stays silent.
func (e Entry) Check(lvlOK loglvl.Level) {
	if e.err == nil {
		e.lvl = lvlOK
	}
	e.Log()
}

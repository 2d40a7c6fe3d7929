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
 *
 */

package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	libsck "github.com/jaronho/nsocket/socket"
)

// Logger wraps a logrus entry at a fixed field (component name), handing
// out the callback adapters the socket and ipc packages are injected
// with.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger at the given severity, tagging every line with
// component as a "component" field.
func New(level Level, component string) *Logger {
	l := logrus.New()
	l.SetLevel(level.Logrus())
	return &Logger{entry: l.WithField("component", component)}
}

// FuncError adapts Logger into a libsck.FuncError, logging at Error
// unless socket.ErrorFilter folds the error (closed-connection/EOF
// noise) down to nil, in which case nothing is logged.
func (l *Logger) FuncError() libsck.FuncError {
	return func(state libsck.ConnState, err error) {
		if filtered := libsck.ErrorFilter(err); filtered != nil {
			l.entry.WithField("state", state.String()).Error(filtered)
		}
	}
}

// FuncInfo adapts Logger into a libsck.FuncInfo.
func (l *Logger) FuncInfo() libsck.FuncInfo {
	return func(state libsck.ConnState, message string) {
		l.entry.WithField("state", state.String()).Info(message)
	}
}

// FuncInfoServer adapts Logger into a libsck.FuncInfoServer.
func (l *Logger) FuncInfoServer() libsck.FuncInfoServer {
	return func(message string) {
		l.entry.Info(message)
	}
}

// OnLog adapts Logger into the ipc.Bus diagnostic callback shape
// (level int, format string, args ...any), mapping the level back onto
// this package's own Level scale.
func (l *Logger) OnLog() func(level int, format string, args ...any) {
	return func(level int, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		switch Level(level) {
		case PanicLevel, FatalLevel, ErrorLevel:
			l.entry.Error(msg)
		case WarnLevel:
			l.entry.Warn(msg)
		case DebugLevel:
			l.entry.Debug(msg)
		default:
			l.entry.Info(msg)
		}
	}
}

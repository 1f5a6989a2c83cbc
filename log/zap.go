// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger writes info entries and above as JSON lines to os.Stdout.
var DefaultLogger Logger = NewZap(InfoLevel, os.Stdout)

// Zap is a Logger backed by a zap sugared logger.
type Zap struct {
	sugar *zap.SugaredLogger
	level Level
	files []*os.File
}

var _ Logger = (*Zap)(nil)

// NewZap creates a Zap logger writing JSON lines at level and above to
// writers. Without writers it writes to os.Stderr.
func NewZap(level Level, writers ...io.Writer) *Zap {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}

	var files []*os.File
	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, writer := range writers {
		syncers = append(syncers, zapcore.AddSync(writer))
		if file, ok := writer.(*os.File); ok && file != os.Stdout && file != os.Stderr {
			files = append(files, file)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zap.CombineWriteSyncers(syncers...),
		zapcore.Level(level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Zap{sugar: logger.Sugar(), level: level, files: files}
}

// Debug logs at debug level.
func (z *Zap) Debug(v ...any) { z.sugar.Debug(v...) }

// Debugf logs a formatted message at debug level.
func (z *Zap) Debugf(format string, v ...any) { z.sugar.Debugf(format, v...) }

// Info logs at info level.
func (z *Zap) Info(v ...any) { z.sugar.Info(v...) }

// Infof logs a formatted message at info level.
func (z *Zap) Infof(format string, v ...any) { z.sugar.Infof(format, v...) }

// Warn logs at warn level.
func (z *Zap) Warn(v ...any) { z.sugar.Warn(v...) }

// Warnf logs a formatted message at warn level.
func (z *Zap) Warnf(format string, v ...any) { z.sugar.Warnf(format, v...) }

// Error logs at error level.
func (z *Zap) Error(v ...any) { z.sugar.Error(v...) }

// Errorf logs a formatted message at error level.
func (z *Zap) Errorf(format string, v ...any) { z.sugar.Errorf(format, v...) }

// Level returns the minimum level written.
func (z *Zap) Level() Level {
	return z.level
}

// Enabled reports whether entries at level are written.
func (z *Zap) Enabled(level Level) bool {
	return level >= z.level
}

// With returns a child logger carrying the given key-value pairs.
func (z *Zap) With(keyValues ...any) Logger {
	if len(keyValues) == 0 {
		return z
	}
	return &Zap{sugar: z.sugar.With(keyValues...), level: z.level, files: z.files}
}

// Flush syncs the file outputs. Standard streams are skipped since syncing
// them fails on most platforms.
func (z *Zap) Flush() error {
	var err error
	for _, file := range z.files {
		err = multierr.Append(err, file.Sync())
	}
	return err
}

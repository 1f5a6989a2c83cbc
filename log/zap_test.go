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
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	require.NotEmpty(t, lines)
	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestZap(t *testing.T) {
	t.Run("With levels", func(t *testing.T) {
		cases := []struct {
			level Level
			write func(Logger)
			msg   string
		}{
			{DebugLevel, func(l Logger) { l.Debugf("lease %s acquired", "gc") }, "lease gc acquired"},
			{InfoLevel, func(l Logger) { l.Info("coordinator started") }, "coordinator started"},
			{WarningLevel, func(l Logger) { l.Warnf("streak=%d", 10) }, "streak=10"},
			{ErrorLevel, func(l Logger) { l.Error(errors.New("metadata version key is missing")) }, "metadata version key is missing"},
		}

		for _, c := range cases {
			buffer := new(bytes.Buffer)
			logger := NewZap(c.level, buffer)
			assert.Equal(t, c.level, logger.Level())

			c.write(logger)
			entry := lastEntry(t, buffer.Bytes())
			assert.Equal(t, c.msg, entry["msg"])
			assert.Equal(t, c.level.String(), entry["level"])
		}
	})
	t.Run("With entries below the level dropped", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.Debug("hidden")
		assert.Empty(t, buffer.String())
		assert.False(t, logger.Enabled(DebugLevel))
		assert.True(t, logger.Enabled(ErrorLevel))
	})
	t.Run("With structured fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("lease", "gc", "timeout", time.Second).Info("retrying")

		entry := lastEntry(t, buffer.Bytes())
		assert.Equal(t, "retrying", entry["msg"])
		assert.Equal(t, "gc", entry["lease"])
		assert.Equal(t, "1s", entry["timeout"])
	})
	t.Run("With no fields", func(t *testing.T) {
		logger := NewZap(InfoLevel, new(bytes.Buffer))
		assert.Same(t, logger, logger.With())
	})
	t.Run("With file output flushed", func(t *testing.T) {
		file, err := os.Create(filepath.Join(t.TempDir(), "kvcoord.log"))
		require.NoError(t, err)
		defer file.Close()

		logger := NewZap(InfoLevel, file, os.Stdout)
		logger.Info("written")
		require.NoError(t, logger.Flush())

		raw, err := os.ReadFile(file.Name())
		require.NoError(t, err)
		assert.Equal(t, "written", lastEntry(t, raw)["msg"])
	})
}

func TestDiscardLogger(t *testing.T) {
	DiscardLogger.Info("ignored")
	DiscardLogger.Errorf("ignored %d", 1)
	assert.Equal(t, ErrorLevel, DiscardLogger.Level())
	assert.False(t, DiscardLogger.Enabled(ErrorLevel))
	assert.Equal(t, DiscardLogger, DiscardLogger.With("k", "v"))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "warn", WarningLevel.String())
	assert.Equal(t, "level(9)", Level(9).String())

	level, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, WarningLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, level)

	_, err = ParseLevel("trace")
	require.Error(t, err)
}

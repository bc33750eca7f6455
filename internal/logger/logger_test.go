package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		now = time.Now
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	withBuffer(t)

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestDebug(t *testing.T) {
	t.Run("silent when not verbose", func(t *testing.T) {
		buf := withBuffer(t)
		Debug("hidden %d", 1)
		assert.Empty(t, buf.String())
	})

	t.Run("prints when verbose", func(t *testing.T) {
		buf := withBuffer(t)
		SetVerbose(true)
		Debug("shown %s", "arg")
		assert.Equal(t, "2026-01-02T03:04:05Z [DEBUG] shown arg\n", buf.String())
	})
}

func TestLevelsAlwaysPrint(t *testing.T) {
	buf := withBuffer(t)

	Info("info %d", 42)
	Warn("careful")
	Error("broken: %v", "disk")

	assert.Equal(t,
		"2026-01-02T03:04:05Z [INFO] info 42\n"+
			"2026-01-02T03:04:05Z [WARN] careful\n"+
			"2026-01-02T03:04:05Z [ERROR] broken: disk\n",
		buf.String())
}

func TestSection(t *testing.T) {
	buf := withBuffer(t)

	Section("quiet")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Retrieval")
	assert.Equal(t, "\n=== Retrieval ===\n", buf.String())
}

func TestConcurrentAccess(t *testing.T) {
	withBuffer(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(i%2 == 0)
			Debug("concurrent %d", i)
			Info("concurrent %d", i)
			IsVerbose()
		}()
	}
	wg.Wait()
}

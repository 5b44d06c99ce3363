package common

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFormatAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("janitor", &buf).(*sKVLogger)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC) }

	l.Debugf("hidden %d", 1)
	l.Warningf("clock skew while evicting %s", "k")
	assert.Equal(t, "2024/05/01 12:30:45.123 WARN  janitor: clock skew while evicting k\n", buf.String())

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Infof("hidden")
	l.Warningf("hidden")
	l.Errorf("broken")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "ERROR janitor: broken")

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	assert.Contains(t, buf.String(), "DEBUG janitor: visible")
}

func TestLoggerPanicf(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("birch", &buf)

	assert.PanicsWithValue(t, "fatal 7", func() { l.Panicf("fatal %d", 7) })
	assert.Contains(t, buf.String(), "birch: fatal 7")
}

func TestLoggerFactorySharesOutput(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggerFactory(&buf)
	a, b := factory("segment"), factory("birch")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); a.Infof("from a") }()
		go func() { defer wg.Done(); b.Infof("from b") }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 100)
	for _, line := range lines {
		assert.Regexp(t, `INFO  (segment: from a|birch: from b)$`, line, "lines are never interleaved")
	}
}

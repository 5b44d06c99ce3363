package common

import (
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for input, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		got, err := ParseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("loud"))
}

func TestToDBOptions(t *testing.T) {
	conf := &EngineConfig{
		DataDir:              "/tmp/skv",
		SegmentMaxBytes:      1024,
		CacheCapacity:        16,
		CacheDurationSeconds: 2.5,
		JanitorInterval:      time.Second,
		CompactionInterval:   time.Minute,
		LogLevel:             "info",
	}

	opts := conf.ToDBOptions()
	assert.Equal(t, "/tmp/skv", opts.StorageDirection)
	assert.Equal(t, int64(1024), opts.SegmentMaxBytes)
	assert.Equal(t, 16, opts.CacheCapacity)
	assert.Equal(t, 2.5, opts.CacheDurationSeconds)
	assert.Equal(t, time.Second, opts.JanitorInterval)
	assert.Equal(t, time.Minute, opts.CompactionInterval)
	assert.Equal(t, "storage", opts.SegmentPrefix, "unset fields keep their defaults")
	assert.Nil(t, opts.CompactionHook)
}

func TestEngineConfigString(t *testing.T) {
	conf := &EngineConfig{DataDir: "data/", CacheCapacity: 64, CacheDurationSeconds: 60, LogLevel: "warn"}

	out := conf.String()
	assert.Contains(t, out, "STORAGE")
	assert.Contains(t, out, "CACHE")
	assert.Regexp(t, `Data Dir\s+: data/`, out)
	assert.Regexp(t, `Capacity\s+: 64 entries`, out)
	assert.Regexp(t, `Duration\s+: 60 sec`, out)
	assert.Regexp(t, `Log Level\s+: warn`, out)
}

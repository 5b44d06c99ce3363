package common

import (
	"fmt"
	"github.com/ValentinKolb/sKV/lib/db/engines/birch"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Engine configuration struct
// --------------------------------------------------------------------------

// EngineConfig holds the resolved configuration of a local engine as read from
// flags, environment and .env files.
type EngineConfig struct {
	// Storage
	DataDir         string
	SegmentMaxBytes int64

	// Cache
	CacheCapacity        int
	CacheDurationSeconds float64
	JanitorInterval      time.Duration

	// Compaction hook interval; the cli logs the hook information
	CompactionInterval time.Duration

	// Logging configuration
	LogLevel string
}

// ToDBOptions converts the EngineConfig to birch options. The compaction hook
// is left to the caller.
func (c *EngineConfig) ToDBOptions() *birch.DBOptions {
	opts := birch.DefaultOptions()
	opts.StorageDirection = c.DataDir
	opts.SegmentMaxBytes = c.SegmentMaxBytes
	opts.CacheCapacity = c.CacheCapacity
	opts.CacheDurationSeconds = c.CacheDurationSeconds
	opts.JanitorInterval = c.JanitorInterval
	opts.CompactionInterval = c.CompactionInterval
	return opts
}

// String returns a formatted string representation of the configuration
func (c *EngineConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Data Dir", c.DataDir)
	addField("Segment Max Size", fmt.Sprintf("%d bytes", c.SegmentMaxBytes))

	addSection("Cache")
	addField("Capacity", fmt.Sprintf("%d entries", c.CacheCapacity))
	addField("Duration", fmt.Sprintf("%g sec", c.CacheDurationSeconds))
	addField("Janitor Interval", c.JanitorInterval.String())

	addSection("Compaction")
	addField("Interval", c.CompactionInterval.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

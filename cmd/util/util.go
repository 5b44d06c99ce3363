package util

import (
	"github.com/ValentinKolb/sKV/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the flags configuring a local engine to a command
func SetupEngineFlags(cmd *cobra.Command) {
	key := "data-dir"
	cmd.PersistentFlags().String(key, "db/", WrapString("Directory holding the segment files (created if missing)"))

	key = "segment-max-bytes"
	cmd.PersistentFlags().Int64(key, 8<<20, WrapString("The active segment rotates once it grew past this size (in bytes)"))

	key = "cache-capacity"
	cmd.PersistentFlags().Int(key, 64, WrapString("Maximum number of cached values (0 disables the cache)"))

	key = "cache-duration"
	cmd.PersistentFlags().Float64(key, 60, WrapString("Seconds a cached value stays after its last access"))

	key = "janitor-interval"
	cmd.PersistentFlags().Duration(key, 2*time.Second, WrapString("How often the cache janitor checks the cache occupancy"))

	key = "compaction-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Interval at which the segment layout is logged for compaction planning (0 = disabled)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("skv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetEngineConfig reads the engine configuration from viper
func GetEngineConfig() *common.EngineConfig {
	return &common.EngineConfig{
		DataDir:              viper.GetString("data-dir"),
		SegmentMaxBytes:      viper.GetInt64("segment-max-bytes"),
		CacheCapacity:        viper.GetInt("cache-capacity"),
		CacheDurationSeconds: viper.GetFloat64("cache-duration"),
		JanitorInterval:      viper.GetDuration("janitor-interval"),
		CompactionInterval:   viper.GetDuration("compaction-interval"),
		LogLevel:             viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

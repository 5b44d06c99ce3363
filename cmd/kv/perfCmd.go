package kv

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/sKV/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the local database",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// percentiles reported per benchmark
var perfPercentiles = []float64{0.5, 0.9, 0.99}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get-hot)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests (get-cold uses ten times the cache capacity)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 || perfNumThreads <= 0 {
		return fmt.Errorf("keys and threads must be positive")
	}
	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// perfResult is the outcome of one benchmark
type perfResult struct {
	name      string
	bench     testing.BenchmarkResult
	latencies gometrics.Timer
	errors    int64
}

// perfScenario prepares the database and returns the operation to measure
type perfScenario struct {
	name    string
	prepare func() (op func(counter int) error)
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetEngineConfig()

	fmt.Println("Performance testing tool for the local database")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	// keys beyond the cache capacity force reads from disk
	coldKeys := max(config.CacheCapacity*10, perfKeySpread)

	scenarios := []perfScenario{
		{name: "set", prepare: func() func(int) error {
			getKey := getKeys("set", perfKeySpread)
			return func(i int) error {
				return database.Update(getKey(i), "test")
			}
		}},
		{name: "set-large", prepare: func() func(int) error {
			getKey := getKeys("set-large", perfKeySpread)
			return func(i int) error {
				return database.Update(getKey(i), largeValue)
			}
		}},
		{name: "get-hot", prepare: func() func(int) error {
			// fewer keys than cache slots, served from the cache
			hot := max(min(perfKeySpread, config.CacheCapacity/2), 1)
			getKey := fill("get-hot", hot)
			return func(i int) error {
				_, err := database.Get(getKey(i), "")
				return err
			}
		}},
		{name: "get-cold", prepare: func() func(int) error {
			getKey := fill("get-cold", coldKeys)
			return func(i int) error {
				// stride through the key space so consecutive reads miss the cache
				_, err := database.Get(getKey(i*7919), "")
				return err
			}
		}},
		{name: "get-absent", prepare: func() func(int) error {
			getKey := getKeys("get-absent", perfKeySpread)
			return func(i int) error {
				_, err := database.Get(getKey(i), "")
				return err
			}
		}},
		{name: "mixed", prepare: func() func(int) error {
			getKey := fill("mixed", perfKeySpread)
			return func(i int) error {
				if i%4 == 0 {
					return database.Update(getKey(i), "test")
				}
				_, err := database.Get(getKey(i), "")
				return err
			}
		}},
	}

	results := make([]perfResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		result := runScenario(scenario)
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runScenario benchmarks one scenario and records the latency of every operation
func runScenario(scenario perfScenario) perfResult {
	result := perfResult{
		name:      scenario.name,
		latencies: gometrics.NewTimer(),
	}
	if shouldSkip(scenario.name) {
		return result
	}

	op := scenario.prepare()
	var errCount atomic.Int64

	result.bench = testing.Benchmark(func(b *testing.B) {
		// testing.Benchmark calls this function with growing b.N, only the last run counts
		result.latencies = gometrics.NewTimer()
		var counter atomic.Int64

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				start := time.Now()
				err := op(int(counter.Add(1)))
				result.latencies.UpdateSince(start)
				if err != nil {
					if errCount.Add(1) == 1 {
						Logger.Warningf("(%s) - error: %v", scenario.name, err)
					}
				}
			}
		})
	})

	result.errors = errCount.Load()
	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates n test keys and returns a function to get a key by index (with wraparound)
func getKeys(prefix string, n int) func(int) string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	return func(i int) string {
		return keys[i%n]
	}
}

// fill creates n test keys and writes each of them once
func fill(prefix string, n int) func(int) string {
	getKey := getKeys(prefix, n)
	for i := 0; i < n; i++ {
		if err := database.Update(getKey(i), "test"); err != nil {
			Logger.Warningf("(%s) - error setting key: %v", prefix, err)
		}
	}
	return getKey
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(result perfResult) {
	if result.bench.N == 0 {
		fmt.Printf("%-12sskipped\n", result.name)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	ps := result.latencies.Percentiles(perfPercentiles)
	fmt.Printf("%-12s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p90=%s p99=%s\terrors=%d\n",
		result.name, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		result.errors,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetEngineConfig()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P90Ns", "P99Ns", "Errors", "Skipped",
		"SegmentMaxBytes", "CacheCapacity", "CacheDurationSec",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := result.bench.N == 0
		if !skipped {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		ps := result.latencies.Percentiles(perfPercentiles)

		row := []string{
			result.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.errors, 10),
			strconv.FormatBool(skipped),
			strconv.FormatInt(config.SegmentMaxBytes, 10),
			strconv.Itoa(config.CacheCapacity),
			strconv.FormatFloat(config.CacheDurationSeconds, 'f', -1, 64),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", result.name, err)
		}
	}

	return nil
}

package conn

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/chbridge/cmd/util"
	"github.com/ValentinKolb/chbridge/lib/conncache"
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the connection layer",
		Long:    "Measures raw connects, cache hits, statements, transactions and reconnects after invalidation. Every thread uses its own cache, like one worker each.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfStatement  = "SELECT 1"
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. connect,reconnect)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "statement"
	perfTestCmd.Flags().String(key, "SELECT 1", util.WrapString("Statement executed by the execute and xact benchmarks"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfStatement = viper.GetString("statement")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	desc, err := connfactory.Resolve(serverOptions, userOptions)
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for the connection layer")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(desc)
	fmt.Println(transportConfig.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := context.Background()
	results := make(map[string]testing.BenchmarkResult)

	// connect opens and closes a connection without cache
	results["connect"] = benchmark("connect", func(pb *testing.PB, _ *conncache.Cache, _ *conncache.LocalTransactions) {
		for pb.Next() {
			gate, err := factory.Open(ctx, desc)
			if err != nil {
				util.Logger.Errorf("(connect) - error opening connection: %v", err)
				continue
			}
			_ = gate.Disconnect()
		}
	})

	// acquire measures cache hits, no round trip is involved
	results["acquire"] = benchmark("acquire", func(pb *testing.PB, cache *conncache.Cache, _ *conncache.LocalTransactions) {
		for pb.Next() {
			if _, err := cache.Acquire(ctx, cliMapping, conncache.IntentRead, false); err != nil {
				util.Logger.Errorf("(acquire) - error acquiring connection: %v", err)
			}
		}
	})

	// execute runs the statement on the cached connection
	results["execute"] = benchmark("execute", func(pb *testing.PB, cache *conncache.Cache, _ *conncache.LocalTransactions) {
		for pb.Next() {
			if err := execOnce(ctx, cache); err != nil {
				util.Logger.Errorf("(execute) - error executing statement: %v", err)
			}
		}
	})

	// xact wraps the statement in a transaction, adding begin and commit round trips
	results["xact"] = benchmark("xact", func(pb *testing.PB, cache *conncache.Cache, xacts *conncache.LocalTransactions) {
		for pb.Next() {
			if err := xacts.Begin(ctx); err != nil {
				util.Logger.Errorf("(xact) - error starting transaction: %v", err)
				continue
			}
			if err := execOnce(ctx, cache); err != nil {
				util.Logger.Errorf("(xact) - error executing statement: %v", err)
				_ = xacts.Abort(ctx)
				continue
			}
			if err := xacts.Commit(ctx); err != nil {
				util.Logger.Errorf("(xact) - error committing transaction: %v", err)
			}
		}
	})

	// reconnect invalidates the connection before every acquire
	results["reconnect"] = benchmark("reconnect", func(pb *testing.PB, cache *conncache.Cache, _ *conncache.LocalTransactions) {
		for pb.Next() {
			cache.OnMetadataChange(conncache.CategoryServer, 0)
			if _, err := cache.Acquire(ctx, cliMapping, conncache.IntentRead, false); err != nil {
				util.Logger.Errorf("(reconnect) - error acquiring connection: %v", err)
			}
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, desc.Driver, desc.Address()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs fn in parallel, every goroutine gets its own cache and transaction manager
func benchmark(test string, fn func(pb *testing.PB, cache *conncache.Cache, xacts *conncache.LocalTransactions)) testing.BenchmarkResult {
	result := testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			xacts := conncache.NewLocalTransactions()
			cache, _ := newCache(xacts)
			defer cache.Close()
			fn(pb, cache, xacts)
		})
	})

	printResult(test, result)
	return result
}

// execOnce acquires the write connection and runs the configured statement
func execOnce(ctx context.Context, cache *conncache.Cache) error {
	gate, err := cache.Acquire(ctx, cliMapping, conncache.IntentWrite, false)
	if err != nil {
		return err
	}
	_, err = gate.Execute(ctx, perfStatement)
	return err
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, driver common.DriverKind, address string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Driver", "Address", "TimeoutSec", "Threads", "Statement",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(driver),
			address,
			strconv.Itoa(transportConfig.TimeoutSecond),
			strconv.Itoa(perfNumThreads),
			perfStatement,
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

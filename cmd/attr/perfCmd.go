package attr

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sessmux/sessmux/cmd/util"
	"github.com/sessmux/sessmux/rpc/client"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf [server]",
		Short:   "Performance testing tool for sessmux servers",
		Long:    "",
		Args:    cobra.ExactArgs(1),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfAddressPrefix = "__test"
	perfNumThreads    = 10
	perfTargetSpread  = 100
	perfValueSizeKB   = 1
	perfSkip          = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. read,write)"))
	key = "threads"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "addresses"
	perfCmd.Flags().Int(key, 100, util.WrapString("How many different addresses to use for the tests"))
	key = "value-size"
	perfCmd.Flags().Int(key, 1, util.WrapString("How large the value for the write test should be (in KB)"))
	key = "csv"
	perfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfTargetSpread = viper.GetInt("addresses")
	perfValueSizeKB = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, args []string) error {
	server := args[0]

	fmt.Println("Performance testing tool for sessmux servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Server: %s\n", server)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	timers := make(map[string]gometrics.Timer)

	readResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("read") {
			return
		}

		getAddress := getAddresses("read")
		timer := gometrics.NewTimer()
		timers["read"] = timer

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					_, err := rpcClient.Read([]client.Target{{
						ServerURI: server,
						Address:   getAddress(counter),
					}})
					if err != nil {
						log.Printf("(read) - error reading attribute: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	results["read"] = readResult
	printPerfResult("read", readResult, timers["read"])

	writeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("write") {
			return
		}

		// prepare value
		value := make([]byte, perfValueSizeKB*1024)

		getAddress := getAddresses("write")
		timer := gometrics.NewTimer()
		timers["write"] = timer

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					_, err := rpcClient.Write([]client.Target{{
						ServerURI: server,
						Address:   getAddress(counter),
						Value:     value,
					}})
					if err != nil {
						log.Printf("(write) - error writing attribute: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	results["write"] = writeResult
	printPerfResult("write", writeResult, timers["write"])

	callResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("call") {
			return
		}

		getAddress := getAddresses("call")
		timer := gometrics.NewTimer()
		timers["call"] = timer

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					_, err := rpcClient.Call([]client.Target{{
						ServerURI: server,
						Address:   getAddress(counter),
					}})
					if err != nil {
						log.Printf("(call) - error calling method: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	results["call"] = callResult
	printPerfResult("call", callResult, timers["call"])

	mixedResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mixed") {
			return
		}

		getAddress := getAddresses("mixed")
		timer := gometrics.NewTimer()
		timers["mixed"] = timer

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				target := []client.Target{{
					ServerURI: server,
					Address:   getAddress(counter),
					Value:     []byte("test"),
				}}

				timer.Time(func() {
					var err error
					switch counter % 3 {
					case 0: // read
						_, err = rpcClient.Read(target)
					case 1: // write
						_, err = rpcClient.Write(target)
					case 2: // call
						_, err = rpcClient.Call(target)
					}

					if err != nil {
						log.Printf("(mixed) - error performing operation (%d): %v\n", counter%3, err)
					}
				})
				counter++
			}
		})
	})

	results["mixed"] = mixedResult
	printPerfResult("mixed", mixedResult, timers["mixed"])

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writePerfResultsToCSV(csvPath, results, timers, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getAddresses creates an array of test addresses and returns an accessor
// with wraparound
func getAddresses(prefix string) func(int) string {
	addresses := make([]string, perfTargetSpread)
	for i := 0; i < perfTargetSpread; i++ {
		addresses[i] = fmt.Sprintf("%s-%s-%d", perfAddressPrefix, prefix, i)
	}

	return func(i int) string {
		return addresses[i%perfTargetSpread]
	}
}

// printPerfResult prints the result of a benchmark test in a formatted way,
// including latency percentiles from the per-test timer
func printPerfResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 || timer == nil {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
}

// writePerfResultsToCSV writes benchmark results to a CSV file
func writePerfResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, timers map[string]gometrics.Timer, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P95", "P99", "Skipped",
		"TimeoutSec", "ConnectTimeoutSec", "Compression",
		"Serializer", "Transport",
		"Threads", "ValueSizeKB", "Addresses",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string
		p := []float64{0, 0, 0}

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			if timer := timers[test]; timer != nil {
				p = timer.Percentiles([]float64{0.5, 0.95, 0.99})
			}
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(p[0]).String(),
			time.Duration(p[1]).String(),
			time.Duration(p[2]).String(),
			skipped,
			strconv.Itoa(config.CallTimeoutSecond),
			strconv.Itoa(config.ConnectTimeoutSecond),
			strconv.FormatBool(config.Compression),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSizeKB),
			strconv.Itoa(perfTargetSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

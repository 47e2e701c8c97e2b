package perf

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dMQ/cmd/util"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/pubsub"
	"github.com/ValentinKolb/dMQ/rpc/socket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	// PerfCmd measures local publish/subscribe throughput
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dMQ sockets",
		Long:    "Runs a publisher and a subscriber in this process and measures how fast messages travel between them over each transport and message size.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfTransports = []string{"tcp", "unix"}
	perfSizes      = []int{16, 1024, 64 * 1024}
	perfSkip       = make([]string, 0)
)

const perfTopic = "__perf"

func init() {
	util.SetupSocketFlags(PerfCmd)

	// add flags
	key := "transports"
	PerfCmd.Flags().String(key, "tcp,unix", util.WrapString("Transports to test (comma separated)"))
	key = "sizes"
	PerfCmd.Flags().String(key, "16,1024,65536", util.WrapString("Payload sizes in bytes to test (comma separated)"))
	key = "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. tcp/16,unix/1024)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(_ *cobra.Command, _ []string) error {
	perfTransports = strings.Split(viper.GetString("transports"), ",")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	perfSizes = perfSizes[:0]
	for _, s := range strings.Split(viper.GetString("sizes"), ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || size < 0 {
			return fmt.Errorf("invalid size %q", s)
		}
		perfSizes = append(perfSizes, size)
	}
	return nil
}

// result of a single benchmark
type result struct {
	bench     testing.BenchmarkResult
	sent      int64
	delivered int64
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetSocketConfig()

	fmt.Println("Performance testing tool for dMQ sockets")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]*result)
	for _, transport := range perfTransports {
		for _, size := range perfSizes {
			name := fmt.Sprintf("%s/%d", strings.TrimSpace(transport), size)
			res := &result{}
			if !shouldSkip(name) {
				endpoint, err := endpointFor(strings.TrimSpace(transport))
				if err != nil {
					return err
				}
				res.bench = testing.Benchmark(pubSubBenchmark(config, endpoint, make([]byte, size), res))
			}
			results[name] = res
			printResult(name, res)
		}
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// endpointFor returns a local endpoint for the transport
func endpointFor(transport string) (string, error) {
	switch transport {
	case "tcp":
		return "tcp://127.0.0.1:0", nil
	case "unix":
		return "unix://" + filepath.Join(os.TempDir(), fmt.Sprintf("dmq-perf-%d.sock", os.Getpid())), nil
	default:
		return "", fmt.Errorf("invalid transport %s", transport)
	}
}

// pubSubBenchmark publishes b.N messages and stops the timer once the subscriber
// received all of them (or no more messages arrive)
func pubSubBenchmark(config common.SocketConfig, endpoint string, payload []byte, res *result) func(b *testing.B) {
	return func(b *testing.B) {
		var received atomic.Int64
		sub := pubsub.NewSubSocket(config)
		sub.On(socket.EventMessage, func(socket.Event) { received.Add(1) })
		if err := sub.Bind(endpoint); err != nil {
			b.Fatalf("failed to bind subscriber: %v", err)
		}
		defer sub.Close()

		connected := make(chan struct{}, 1)
		pub := pubsub.NewPubSocket(config)
		pub.On(socket.EventConnect, func(socket.Event) {
			select {
			case connected <- struct{}{}:
			default:
			}
		})
		defer pub.Close()
		if err := pub.Connect(sub.AddressString()); err != nil {
			b.Fatalf("failed to connect publisher: %v", err)
		}
		select {
		case <-connected:
		case <-time.After(5 * time.Second):
			b.Fatal("publisher did not connect")
		}

		topic := []byte(perfTopic)
		b.SetBytes(int64(len(payload)))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := pub.Send(topic, payload); err != nil {
				b.Fatalf("failed to send: %v", err)
			}
		}
		waitDelivered(&received, int64(b.N))
		b.StopTimer()

		res.sent += int64(b.N)
		res.delivered += received.Load()
	}
}

// waitDelivered blocks until n messages were received or the count stopped growing
func waitDelivered(received *atomic.Int64, n int64) {
	last, idle := received.Load(), time.Duration(0)
	for last < n && idle < 500*time.Millisecond {
		time.Sleep(time.Millisecond)
		if cur := received.Load(); cur != last {
			last, idle = cur, 0
		} else {
			idle += time.Millisecond
		}
	}
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// deliveryRatio returns the share of sent messages that arrived, in percent
func deliveryRatio(res *result) float64 {
	if res.sent == 0 {
		return 0
	}
	return float64(res.delivered) / float64(res.sent) * 100
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, res *result) {
	if res.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f msg/sec\t%.2f MB/s\t%.1f%% delivered\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, mbPerSec(res.bench), deliveryRatio(res))
}

func mbPerSec(r testing.BenchmarkResult) float64 {
	if r.T <= 0 {
		return 0
	}
	return float64(r.Bytes) * float64(r.N) / 1e6 / r.T.Seconds()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]*result, config common.SocketConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "MsgPerSec", "MBPerSec", "DeliveredPercent", "Skipped",
		"SendBuffer", "HighWaterMark", "TCPNoDelay",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write test results
	for test, res := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if res.bench.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(res.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.2f", mbPerSec(res.bench)),
			fmt.Sprintf("%.1f", deliveryRatio(res)),
			skipped,
			strconv.Itoa(config.SendBufferSize),
			strconv.Itoa(config.HighWaterMark),
			strconv.FormatBool(config.TCPConf.TCPNoDelay),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test, err)
		}
	}

	return nil
}

package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	TotalRequests uint64
	Success       uint64
	Errors        uint64
	Latencies     chan time.Duration
}

type Result struct {
	Throughput string
	P50        string
	P99        string
	Success    string
}

func main() {
	mode := flag.String("mode", "bench", "Mode: bench, scale-test, or seed")
	target := flag.String("target", "http://127.0.0.1:8080", "Base URL of the auth API")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	count := flag.Int("n", 1000, "Total number of requests to send")
	rangeLimit := flag.Int("range", 100000, "Number of seeded sessions to draw tokens from")
	zipfS := flag.Float64("zipf-s", 1.1, "Zipf distribution constant (s > 1). Higher means more 'Hot' sessions.")
	zipfV := flag.Float64("zipf-v", 100, "Zipf distribution constant (v >= 1).")
	flag.Parse()

	switch *mode {
	case "seed":
		runSeed(*rangeLimit)
	case "scale-test":
		runScaleTest(*count, *concurrency, *rangeLimit)
	default:
		runBenchmark(*target, *count, *concurrency, uint64(*rangeLimit), *zipfS, *zipfV)
	}
}

// benchToken derives the deterministic session token for seeded session i.
// 64 hex characters, the same shape real session tokens have, so workers
// never need to read the pool back out of the database.
func benchToken(i uint64) string {
	return fmt.Sprintf("%064x", i)
}

func runBenchmark(target string, count int, concurrency int, rangeLimit uint64, s float64, v float64) Result {
	fmt.Printf("Starting Session Introspection Benchmark\n")
	fmt.Printf("Configuration: %d requests | %d concurrency | Pool Size: %d | Zipf(s=%.1f, v=%.1f)\n", count, concurrency, rangeLimit, s, v)

	stats := Stats{
		Latencies: make(chan time.Duration, count),
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	requestsPerWorker := count / concurrency

	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			runWorker(target, requestsPerWorker, workerID, rangeLimit, s, v, &stats)
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	close(stats.Latencies)

	return printEnhancedReport(duration, &stats, concurrency)
}

func runWorker(target string, count int, workerID int, rangeLimit uint64, s float64, v float64, stats *Stats) {
	client := &http.Client{Timeout: 2 * time.Second}
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	zipf := rand.NewZipf(r, s, v, rangeLimit-1)

	for i := 0; i < count; i++ {
		idx := zipf.Uint64()

		req, err := http.NewRequest("GET", target+"/api/v1/session", nil)
		if err != nil {
			atomic.AddUint64(&stats.Errors, 1)
			atomic.AddUint64(&stats.TotalRequests, 1)
			continue
		}
		req.Header.Set("Authorization", "Bearer "+benchToken(idx))

		requestStart := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&stats.Errors, 1)
			atomic.AddUint64(&stats.TotalRequests, 1)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			atomic.AddUint64(&stats.Success, 1)
			stats.Latencies <- time.Since(requestStart)
		} else {
			atomic.AddUint64(&stats.Errors, 1)
		}
		atomic.AddUint64(&stats.TotalRequests, 1)
	}
}

func printEnhancedReport(duration time.Duration, stats *Stats, concurrency int) Result {
	rps := float64(stats.Success) / duration.Seconds()

	var latencies []time.Duration
	for l := range stats.Latencies {
		latencies = append(latencies, l)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println("\n============================================")
	fmt.Println("        AUTH ENGINE PERFORMANCE REPORT      ")
	fmt.Println("============================================")
	fmt.Printf("Test Duration:    %v\n", duration)
	fmt.Printf("Concurrency:      %d workers\n", concurrency)
	fmt.Printf("Throughput:       %.2f introspections/sec\n", rps)

	fmt.Println("\n--- Request Statistics ---")
	fmt.Printf("Total Attempted:  %d\n", stats.TotalRequests)
	fmt.Printf("Successful:       %d\n", stats.Success)
	fmt.Printf("Failed/Timed out: %d\n", stats.Errors)
	reliability := 0.0
	if stats.TotalRequests > 0 {
		reliability = (float64(stats.Success) / float64(stats.TotalRequests)) * 100
		fmt.Printf("Reliability:      %.2f%%\n", reliability)
	}

	result := Result{
		Throughput: fmt.Sprintf("%.2f", rps),
		P50:        "N/A",
		P99:        "N/A",
		Success:    fmt.Sprintf("%.2f%%", reliability),
	}

	if len(latencies) > 0 {
		fmt.Println("\n--- Latency Percentiles ---")
		fmt.Printf("P50 (Median):     %v\n", latencies[len(latencies)/2])
		fmt.Printf("P90:              %v\n", latencies[int(float64(len(latencies))*0.90)])
		fmt.Printf("P95:              %v\n", latencies[int(float64(len(latencies))*0.95)])
		fmt.Printf("P99:              %v\n", latencies[int(float64(len(latencies))*0.99)])
		fmt.Printf("Min:              %v\n", latencies[0])
		fmt.Printf("Max:              %v\n", latencies[len(latencies)-1])
		result.P50 = latencies[len(latencies)/2].String()
		result.P99 = latencies[int(float64(len(latencies))*0.99)].String()
	}
	fmt.Println("============================================")
	return result
}

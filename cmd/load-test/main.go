package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type SendRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type LoadTestResult struct {
	TotalRequests   int
	AcceptedCount   int32
	QueueFailed     int32
	FailureCount    int32
	TotalDuration   time.Duration
	RequestsPerSec  float64
	AvgResponseTime time.Duration
	MinResponseTime time.Duration
	MaxResponseTime time.Duration
	Errors          map[string]int
}

func runLoadTest(client *http.Client, url string, numRequests int, concurrency int) *LoadTestResult {
	var (
		acceptedCount int32
		queueFailed   int32
		failureCount  int32
		totalRespTime int64
		minRespTime   int64 = int64(^uint64(0) >> 1) // Max int64
		maxRespTime   int64
		errorsMu      sync.Mutex
		errors        = make(map[string]int)
		wg            sync.WaitGroup
		semaphore     = make(chan struct{}, concurrency)
	)

	recordError := func(msg string) {
		atomic.AddInt32(&failureCount, 1)
		errorsMu.Lock()
		errors[msg]++
		errorsMu.Unlock()
	}

	startTime := time.Now()

	fmt.Printf("\nStarting load test: %d requests with concurrency %d\n", numRequests, concurrency)
	fmt.Printf("Target: %s\n", url)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(reqNum int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			reqStart := time.Now()

			payload := SendRequest{
				Sender:    fmt.Sprintf("+6681234%04d", reqNum%10000),
				Recipient: fmt.Sprintf("+6689876%04d", reqNum%10000),
				Text:      fmt.Sprintf("Test message from load test request #%d", reqNum),
			}
			jsonData, _ := json.Marshal(payload)

			resp, err := client.Post(url, "application/json", bytes.NewBuffer(jsonData))
			reqDuration := time.Since(reqStart)

			respTimeNs := reqDuration.Nanoseconds()
			atomic.AddInt64(&totalRespTime, respTimeNs)

			for {
				oldMin := atomic.LoadInt64(&minRespTime)
				if respTimeNs >= oldMin || atomic.CompareAndSwapInt64(&minRespTime, oldMin, respTimeNs) {
					break
				}
			}
			for {
				oldMax := atomic.LoadInt64(&maxRespTime)
				if respTimeNs <= oldMax || atomic.CompareAndSwapInt64(&maxRespTime, oldMax, respTimeNs) {
					break
				}
			}

			if err != nil {
				recordError(err.Error())
				return
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusAccepted {
				recordError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
				return
			}

			var sendResp SendResponse
			if err := json.Unmarshal(body, &sendResp); err != nil {
				recordError("JSON parse error")
				return
			}

			atomic.AddInt32(&acceptedCount, 1)
			// 202 with FAILED means the message could not be queued.
			if sendResp.Status == "FAILED" {
				atomic.AddInt32(&queueFailed, 1)
			}

			if reqNum%10 == 0 {
				fmt.Print(".")
			}
		}(i)
	}

	wg.Wait()
	totalDuration := time.Since(startTime)

	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return &LoadTestResult{
		TotalRequests:   numRequests,
		AcceptedCount:   acceptedCount,
		QueueFailed:     queueFailed,
		FailureCount:    failureCount,
		TotalDuration:   totalDuration,
		RequestsPerSec:  float64(numRequests) / totalDuration.Seconds(),
		AvgResponseTime: time.Duration(totalRespTime / int64(numRequests)),
		MinResponseTime: time.Duration(minRespTime),
		MaxResponseTime: time.Duration(maxRespTime),
		Errors:          errors,
	}
}

func printResults(result *LoadTestResult) {
	pct := func(n int32) float64 { return float64(n) / float64(result.TotalRequests) * 100 }

	fmt.Printf("\nLoad Test Results\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Total Requests:      %d\n", result.TotalRequests)
	fmt.Printf("Accepted (202):      %d (%.2f%%)\n", result.AcceptedCount, pct(result.AcceptedCount))
	fmt.Printf("  of which FAILED:   %d (%.2f%%)\n", result.QueueFailed, pct(result.QueueFailed))
	fmt.Printf("Rejected/errored:    %d (%.2f%%)\n", result.FailureCount, pct(result.FailureCount))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Total Duration:      %v\n", result.TotalDuration)
	fmt.Printf("Requests/sec:        %.2f\n", result.RequestsPerSec)
	fmt.Printf("Avg Response Time:   %v\n", result.AvgResponseTime)
	fmt.Printf("Min Response Time:   %v\n", result.MinResponseTime)
	fmt.Printf("Max Response Time:   %v\n", result.MaxResponseTime)

	if len(result.Errors) > 0 {
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println("Errors:")
		for errMsg, count := range result.Errors {
			fmt.Printf("   • %s: %d times\n", errMsg, count)
		}
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func printStats(client *http.Client, baseURL string) {
	resp, err := client.Get(baseURL + "/v1/messages/stats")
	if err != nil {
		fmt.Printf("Could not fetch stats: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Printf("Could not decode stats: %v\n", err)
		return
	}
	fmt.Printf("Store: total=%v pending=%v sent=%v failed=%v success_rate=%v\n",
		stats["total_messages"], stats["pending_messages"], stats["sent_messages"],
		stats["failed_messages"], stats["success_rate"])
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of sms-api")
	requests := flag.Int("n", 1000, "requests in the large run")
	concurrency := flag.Int("c", 50, "concurrency of the large run")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	sendURL := *baseURL + "/v1/messages"

	fmt.Println("Checking if server is running...")
	resp, err := client.Get(*baseURL + "/health")
	if err != nil {
		fmt.Printf("Error: cannot connect to server at %s\n", *baseURL)
		fmt.Println("Make sure sms-api or sms-standalone is running")
		return
	}
	resp.Body.Close()
	fmt.Println("Server is running")

	// The default RATE_LIMIT of 100/min per IP rejects most of these;
	// raise it on the server before measuring throughput.
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("TEST 1: 100 Requests (Concurrency: 10)")
	fmt.Println("═══════════════════════════════════════════════════════")
	small := runLoadTest(client, sendURL, 100, 10)
	printResults(small)

	fmt.Println("Waiting 3 seconds before next test...")
	time.Sleep(3 * time.Second)

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("TEST 2: %d Requests (Concurrency: %d)\n", *requests, *concurrency)
	fmt.Println("═══════════════════════════════════════════════════════")
	large := runLoadTest(client, sendURL, *requests, *concurrency)
	printResults(large)

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("COMPARISON SUMMARY")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("100 Requests:  %.2f req/sec | Avg: %v\n", small.RequestsPerSec, small.AvgResponseTime)
	fmt.Printf("%d Requests: %.2f req/sec | Avg: %v\n", *requests, large.RequestsPerSec, large.AvgResponseTime)
	printStats(client, *baseURL)
	fmt.Println("═══════════════════════════════════════════════════════")
}

package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"example.com/openchat/internal/models"
)

// userResp is what POST /users returns.
type userResp struct {
	models.User
	Token string `json:"token"`
}

type counters struct {
	requests  int64
	successes int64
	errors4xx int64
	errors5xx int64
}

func (c *counters) record(status int) {
	atomic.AddInt64(&c.requests, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&c.successes, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&c.errors4xx, 1)
	case status >= 500:
		atomic.AddInt64(&c.errors5xx, 1)
	}
}

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64
	var insecure bool

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.StringVar(&csvFile, "csv", "", "CSV file to save latencies (empty to skip)")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flag.Parse()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		},
		Timeout: 10 * time.Second,
	}

	// --- Create users for each goroutine ---
	fmt.Printf("Creating %d users...\n", concurrency)
	users := make([]userResp, concurrency)
	for i := 0; i < concurrency; i++ {
		payload := map[string]string{
			"username": fmt.Sprintf("load-user-%d-%d", i, time.Now().UnixNano()),
			"password": "load-test",
			"about":    "load test user",
		}
		if _, err := doJSON(client, http.MethodPost, server+"/users", payload, "", &users[i]); err != nil {
			panic(fmt.Sprintf("failed to create user: %v", err))
		}
	}
	fmt.Println("Users created.")

	// --- Each user follows the next one, so every wall merges two timelines ---
	for i := 0; i < concurrency && concurrency > 1; i++ {
		next := users[(i+1)%concurrency]
		follow := models.Follow{FollowerID: users[i].ID, FolloweeID: next.ID}
		if _, err := doJSON(client, http.MethodPost, server+"/followings", follow, users[i].Token, nil); err != nil {
			panic(fmt.Sprintf("failed to follow: %v", err))
		}
	}
	fmt.Println("Follows created.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup
	var publishes, walls counters

	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	// --- Alternate publishing and reading the wall until the test duration ends ---
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := users[idx]
			var localLatencies []float64

			for n := 0; time.Now().Before(stopTime); n++ {
				start := time.Now()
				var status int
				var err error
				if n%2 == 0 {
					body := map[string]string{"text": fmt.Sprintf("load test post %d", time.Now().UnixNano())}
					status, err = doJSON(client, http.MethodPost, server+"/users/"+user.ID+"/timeline", body, user.Token, nil)
					publishes.record(status)
				} else {
					status, err = doJSON(client, http.MethodGet, server+"/users/"+user.ID+"/wall", nil, "", nil)
					walls.record(status)
				}
				localLatencies = append(localLatencies, time.Since(start).Seconds()*1000) // latency in ms

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
				}
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	// --- Compute statistics ---
	elapsed := float64(duration)
	fmt.Printf("Publish: requests=%d successes=%d 4xx=%d 5xx=%d\n",
		publishes.requests, publishes.successes, publishes.errors4xx, publishes.errors5xx)
	fmt.Printf("Wall:    requests=%d successes=%d 4xx=%d 5xx=%d\n",
		walls.requests, walls.successes, walls.errors4xx, walls.errors5xx)
	fmt.Printf("Throughput: %.2f req/s\n", float64(publishes.requests+walls.requests)/elapsed)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		trimmedMean(allLatencies, trimPercent),
		percentile(allLatencies, 50), percentile(allLatencies, 90), percentile(allLatencies, 99))

	if csvFile == "" {
		return
	}

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// doJSON sends body as JSON and decodes a 2xx response into out when out is not nil.
func doJSON(client *http.Client, method, url string, body any, token string, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = (len(data) - 1) / 2
	}
	trimmed := data[trim : len(data)-trim]
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}

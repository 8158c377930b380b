// Command loadgen fires signed webhook batches at a dealbridge instance to
// exercise the receive-enqueue-process pipeline under load.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type options struct {
	target      string
	source      string
	secret      string
	batchSize   int
	concurrency int
	duration    time.Duration
	deals       int
}

type webhookEvent struct {
	EventID          int64  `json:"eventId"`
	SubscriptionType string `json:"subscriptionType"`
	ObjectID         string `json:"objectId"`
	PropertyName     string `json:"propertyName"`
	PropertyValue    string `json:"propertyValue"`
	OccurredAt       int64  `json:"occurredAt"`
	AttemptNumber    int    `json:"attemptNumber"`
}

func main() {
	var opts options
	flag.StringVar(&opts.target, "target", "http://localhost:8080", "Base URL of the dealbridge instance")
	flag.StringVar(&opts.source, "source", "hubspot", "Webhook source to impersonate")
	flag.StringVar(&opts.secret, "secret", "", "HMAC secret; empty sends unsigned batches")
	flag.IntVar(&opts.batchSize, "batch", 10, "Events per webhook batch")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "Concurrent senders")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&opts.deals, "deals", 100, "Distinct deal IDs to spread events across")
	flag.Parse()

	if opts.batchSize <= 0 || opts.concurrency <= 0 || opts.deals <= 0 {
		fmt.Fprintln(os.Stderr, "batch, concurrency and deals must be positive")
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/webhooks/%s", opts.target, opts.source)
	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(opts.duration)

	var (
		eventSeq  atomic.Int64
		sent      atomic.Int64
		accepted  atomic.Int64
		failed    atomic.Int64
		latencyMu sync.Mutex
		latencies []time.Duration
	)

	var wg sync.WaitGroup
	for i := 0; i < opts.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for time.Now().Before(deadline) {
				body, err := json.Marshal(batch(&opts, &eventSeq, rng))
				if err != nil {
					failed.Add(1)
					continue
				}

				req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
				if err != nil {
					failed.Add(1)
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				if opts.secret != "" {
					req.Header.Set("X-Webhook-Signature", sign(opts.secret, body))
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)

				sent.Add(1)
				if err != nil {
					failed.Add(1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					accepted.Add(1)
					latencyMu.Lock()
					latencies = append(latencies, elapsed)
					latencyMu.Unlock()
				} else {
					failed.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("batches sent:     %d\n", sent.Load())
	fmt.Printf("batches accepted: %d\n", accepted.Load())
	fmt.Printf("batches failed:   %d\n", failed.Load())
	fmt.Printf("events emitted:   %d\n", eventSeq.Load())
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("latency p50:      %s\n", latencies[len(latencies)/2])
		fmt.Printf("latency p99:      %s\n", latencies[len(latencies)*99/100])
	}
}

// batch builds one webhook delivery. Events target a bounded set of deal IDs
// so the server's per-deal ordering paths see contention.
func batch(opts *options, seq *atomic.Int64, rng *rand.Rand) []webhookEvent {
	now := time.Now().UnixMilli()
	events := make([]webhookEvent, 0, opts.batchSize)
	for i := 0; i < opts.batchSize; i++ {
		dealID := rng.Intn(opts.deals) + 1
		events = append(events, webhookEvent{
			EventID:          seq.Add(1),
			SubscriptionType: "deal.propertyChange",
			ObjectID:         fmt.Sprintf("%d", dealID),
			PropertyName:     "amount",
			PropertyValue:    fmt.Sprintf("%d", rng.Intn(100000)),
			OccurredAt:       now,
			AttemptNumber:    0,
		})
	}
	return events
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

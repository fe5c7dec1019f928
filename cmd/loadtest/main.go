// Command loadtest drives POST /api/v1/highlight with a rotating set of
// queries against seeded documents and prints throughput, latency
// percentiles, the status-code mix and how many hits came back with errors.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-seed=true]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	docIDs      []string
	queries     []string
}

var corpus = []string{
	"Distributed systems replicate state across machines so that a single failure does not lose data.",
	"A search engine keeps term vectors with positions and offsets for every highlighted field.",
	"Query processing expands wildcard terms against the dictionary before phrases are matched.",
	"The circuit breaker opens after repeated failures and lets one probe through after a cool-down.",
	"Fragments are ranked by the weight of the phrases they contain and rendered with highlight tags.",
	"Load balancing spreads requests across replicas; caching keeps repeated queries cheap.",
}

var queries = []string{
	"distributed systems",
	"search engine",
	"term vectors",
	"wildcard phrases",
	"circuit breaker",
	"load balancing",
	"highlight tags",
	"query processing",
}

// highlightResponse is the subset of the response the report needs.
type highlightResponse struct {
	Hits []struct {
		Error       string            `json:"error"`
		FieldErrors map[string]string `json:"field_errors"`
	} `json:"hits"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the highlighter service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seed := flag.Bool("seed", true, "index the sample corpus through /api/v1/documents first")
	flag.Parse()

	opts := options{
		baseURL:     *baseURL,
		concurrency: *concurrency,
		duration:    *duration,
		queries:     queries,
	}
	for i := range corpus {
		opts.docIDs = append(opts.docIDs, fmt.Sprintf("loadtest-%d", i))
	}

	fmt.Println("=== Highlighter Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Queries:     %d unique over %d documents\n\n", len(opts.queries), len(opts.docIDs))

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if *seed {
		if err := seedCorpus(context.Background(), client, opts); err != nil {
			fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
			os.Exit(1)
		}
	}

	rec := newRecorder()
	run(client, opts, rec)
	r := rec.summarize(opts.duration)
	r.print(os.Stdout)
	if r.Total == 0 {
		fmt.Println("\nWARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func seedCorpus(ctx context.Context, client *http.Client, opts options) error {
	for i, text := range corpus {
		body, err := json.Marshal(map[string]any{
			"document_id": opts.docIDs[i],
			"language":    "en",
			"fields": map[string][]string{
				"title":   {fmt.Sprintf("Sample %d", i)},
				"content": {text},
				"ingress": {text},
			},
		})
		if err != nil {
			return err
		}
		status, _, err := post(ctx, client, opts.baseURL+"/api/v1/documents", body)
		if err != nil {
			return fmt.Errorf("document %s: %w", opts.docIDs[i], err)
		}
		if status >= 300 {
			return fmt.Errorf("document %s: status %d", opts.docIDs[i], status)
		}
	}
	return nil
}

// run keeps concurrency workers busy until the duration elapses. Errors are
// recorded rather than returned, so the group only coordinates shutdown.
func run(client *http.Client, opts options, rec *recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				body, _ := json.Marshal(map[string]any{
					"q":       opts.queries[i%len(opts.queries)],
					"doc_ids": opts.docIDs,
				})

				start := time.Now()
				status, payload, err := post(ctx, client, opts.baseURL+"/api/v1/highlight", body)
				elapsed := time.Since(start)
				if err != nil && ctx.Err() != nil {
					return nil
				}
				rec.record(elapsed, status, hitErrors(payload), err)
			}
			return nil
		})
	}

	fmt.Print("Running")
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-progress.C:
				fmt.Print(".")
			}
		}
	}()

	g.Wait()
	fmt.Print(" done!\n\n")
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	return resp.StatusCode, payload, err
}

// hitErrors counts hits and fields that failed to highlight.
func hitErrors(payload []byte) int {
	var resp highlightResponse
	if json.Unmarshal(payload, &resp) != nil {
		return 0
	}
	n := 0
	for _, h := range resp.Hits {
		if h.Error != "" {
			n++
		}
		n += len(h.FieldErrors)
	}
	return n
}

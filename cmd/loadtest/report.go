package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
	failed    int64
	hitErrors int64
}

func newRecorder() *recorder {
	return &recorder{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

// record stores one request. Transport failures carry status 0 and no
// latency sample.
func (r *recorder) record(elapsed time.Duration, status, hitErrors int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.codes[status]++
	r.latencies = append(r.latencies, elapsed)
	r.hitErrors += int64(hitErrors)
}

type report struct {
	Total, Success, Errors int64
	HitErrors              int64
	RPS                    float64
	Min, Avg, Max, StdDev  time.Duration
	P50, P90, P95, P99     time.Duration
	Codes                  map[int]int64
}

func (r *recorder) summarize(elapsed time.Duration) report {
	r.mu.Lock()
	latencies := slices.Clone(r.latencies)
	out := report{Errors: r.failed, HitErrors: r.hitErrors, Codes: make(map[int]int64, len(r.codes))}
	for code, n := range r.codes {
		out.Codes[code] = n
		if code >= 200 && code < 300 {
			out.Success += n
		} else {
			out.Errors += n
		}
	}
	r.mu.Unlock()

	out.Total = out.Success + out.Errors
	if elapsed > 0 {
		out.RPS = float64(out.Total) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return out
	}

	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	out.Avg = sum / time.Duration(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l - out.Avg)
		sq += d * d
	}
	out.StdDev = time.Duration(math.Sqrt(sq / float64(len(latencies))))
	out.Min, out.Max = latencies[0], latencies[len(latencies)-1]
	out.P50 = percentile(latencies, 50)
	out.P90 = percentile(latencies, 90)
	out.P95 = percentile(latencies, 95)
	out.P99 = percentile(latencies, 99)
	return out
}

func (r report) print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	fmt.Fprintf(w, "Hit errors:      %d\n", r.HitErrors)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(r.Errors)/float64(r.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	}

	if r.Max > 0 {
		fmt.Fprintln(w, "\n=== Latency ===")
		for _, row := range []struct {
			name string
			d    time.Duration
		}{
			{"Min", r.Min}, {"Avg", r.Avg}, {"P50", r.P50}, {"P90", r.P90},
			{"P95", r.P95}, {"P99", r.P99}, {"Max", r.Max}, {"StdDev", r.StdDev},
		} {
			fmt.Fprintf(w, "%-7s %s\n", row.name+":", row.d)
		}
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(r.Codes))
	for code := range r.Codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.Codes[code])
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

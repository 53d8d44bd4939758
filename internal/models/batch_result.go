package models

import (
	"sort"
	"time"
)

// CallResult is the outcome of a single call made during a batch run
type CallResult struct {
	Operation  string        `json:"operation" yaml:"operation"`
	Method     string        `json:"method" yaml:"method"`
	Path       string        `json:"path" yaml:"path"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`

	// Failure classification, empty on success
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the call produced a success outcome
func (r CallResult) Succeeded() bool {
	return r.Kind == ""
}

// BatchSummary represents the overall results of a batch run
type BatchSummary struct {
	// Configuration
	Concurrency int     `json:"concurrency" yaml:"concurrency"`
	RateLimit   float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// Counts
	TotalCalls int     `json:"total_calls" yaml:"total_calls"`
	Succeeded  int     `json:"succeeded" yaml:"succeeded"`
	Failed     int     `json:"failed" yaml:"failed"`
	ErrorRate  float64 `json:"error_rate" yaml:"error_rate"`

	// Distributions
	FailuresByKind map[string]int `json:"failures_by_kind" yaml:"failures_by_kind"`
	StatusCodes    map[int]int    `json:"status_codes" yaml:"status_codes"`

	// Latency of successful calls
	MinTime time.Duration `json:"min_time_ns" yaml:"min_time_ns"`
	MaxTime time.Duration `json:"max_time_ns" yaml:"max_time_ns"`
	AvgTime time.Duration `json:"avg_time_ns" yaml:"avg_time_ns"`
	P50Time time.Duration `json:"p50_time_ns" yaml:"p50_time_ns"`
	P90Time time.Duration `json:"p90_time_ns" yaml:"p90_time_ns"`
	P99Time time.Duration `json:"p99_time_ns" yaml:"p99_time_ns"`

	// Throughput
	TotalDuration  time.Duration `json:"total_duration_ns" yaml:"total_duration_ns"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	Results []CallResult `json:"results" yaml:"results"`
}

// NewBatchSummary creates an empty summary for the given configuration
func NewBatchSummary(concurrency int, rateLimit float64) BatchSummary {
	return BatchSummary{
		Concurrency:    concurrency,
		RateLimit:      rateLimit,
		FailuresByKind: make(map[string]int),
		StatusCodes:    make(map[int]int),
	}
}

// AddResult adds a call result to the summary and updates the counters
func (s *BatchSummary) AddResult(result CallResult) {
	s.Results = append(s.Results, result)
	s.TotalCalls++

	if result.Succeeded() {
		s.Succeeded++
	} else {
		s.Failed++
		s.FailuresByKind[result.Kind]++
	}

	if result.StatusCode > 0 {
		s.StatusCodes[result.StatusCode]++
	}
}

// Finalize calculates latency percentiles, error rate and throughput
func (s *BatchSummary) Finalize(totalDuration time.Duration) {
	s.TotalDuration = totalDuration
	if totalDuration > 0 {
		s.RequestsPerSec = float64(s.TotalCalls) / totalDuration.Seconds()
	}
	if s.TotalCalls > 0 {
		s.ErrorRate = float64(s.Failed) / float64(s.TotalCalls) * 100
	}

	var durations []time.Duration
	var total time.Duration
	for _, r := range s.Results {
		if r.Succeeded() {
			durations = append(durations, r.Duration)
			total += r.Duration
		}
	}
	if len(durations) == 0 {
		return
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	s.MinTime = durations[0]
	s.MaxTime = durations[len(durations)-1]
	s.AvgTime = total / time.Duration(len(durations))
	s.P50Time = Percentile(durations, 50)
	s.P90Time = Percentile(durations, 90)
	s.P99Time = Percentile(durations, 99)
}

// Percentile calculates the p-th percentile from sorted durations
func Percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}
